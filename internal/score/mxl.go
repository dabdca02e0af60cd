package score

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxUnwrappedBytes bounds MXL decompression so a small upload cannot expand
// into an arbitrarily large in-memory document.
const maxUnwrappedBytes = 64 << 20

type mxlContainer struct {
	RootFiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// unwrapMXL extracts the uncompressed MusicXML document from an MXL (zip)
// payload. The root document is located via META-INF/container.xml; when the
// manifest is missing, the first top-level .xml/.musicxml entry is used.
func unwrapMXL(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open mxl archive: %w", err)
	}

	if target := containerRootPath(reader); target != "" {
		if payload, err := readArchiveFile(reader, target); err == nil {
			return payload, nil
		} else {
			return nil, fmt.Errorf("read mxl root document %q: %w", target, err)
		}
	}

	for _, file := range reader.File {
		name := file.Name
		if strings.HasPrefix(name, "META-INF/") {
			continue
		}
		ext := strings.ToLower(path.Ext(name))
		if ext == ".xml" || ext == ".musicxml" {
			return readArchiveFile(reader, name)
		}
	}
	return nil, errors.New("mxl archive contains no MusicXML document")
}

func containerRootPath(reader *zip.Reader) string {
	payload, err := readArchiveFile(reader, "META-INF/container.xml")
	if err != nil {
		return ""
	}
	var container mxlContainer
	if err := xml.Unmarshal(payload, &container); err != nil {
		return ""
	}
	for _, root := range container.RootFiles {
		if trimmed := strings.TrimSpace(root.FullPath); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		payload, err := io.ReadAll(io.LimitReader(rc, maxUnwrappedBytes+1))
		if err != nil {
			return nil, err
		}
		if len(payload) > maxUnwrappedBytes {
			return nil, fmt.Errorf("entry %q exceeds %d byte decompression limit", name, maxUnwrappedBytes)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("entry %q not found", name)
}
