// Command scoreframe converts MusicXML scores into violin fingerboard
// visualization videos, either as a one-shot local render or as an HTTP API
// server.
package main
