package graph

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// magic identifies a PGPH graph file; version is bumped if the payload
// encoding ever changes.
var magic = [4]byte{'P', 'G', 'P', 'H'}

const formatVersion = 1

type pgphHeader struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

// payloadDocument is the opaque payload's own encoding: plain JSON of the
// Graph. Downstream consumers that don't speak JSON can swap this function
// without touching the magic/version/header framing other tooling relies on.
type payloadDocument struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// SaveGraph writes g to the named file in PGPH format: 4-byte magic, 1-byte
// version, 4-byte little-endian header length, header bytes, then the
// opaque payload.
func SaveGraph(name string, g *Graph) error {
	header, err := json.Marshal(pgphHeader{Format: "pgph", Version: formatVersion})
	if err != nil {
		return fmt.Errorf("encode pgph header: %w", err)
	}
	payload, err := json.Marshal(payloadDocument{Nodes: g.Nodes, Edges: g.Edges})
	if err != nil {
		return fmt.Errorf("encode pgph payload: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(header))); err != nil {
		return fmt.Errorf("write pgph header length: %w", err)
	}
	buf.Write(header)
	buf.Write(payload)

	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save graph %s: %w", name, err)
	}
	return nil
}

// LoadGraph reads a PGPH-formatted file back into a Graph.
func LoadGraph(name string) (*Graph, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	if len(data) < 9 {
		return nil, fmt.Errorf("load graph %s: truncated file", name)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("load graph %s: bad magic", name)
	}
	version := data[4]
	if version != formatVersion {
		return nil, fmt.Errorf("load graph %s: unsupported version %d", name, version)
	}
	headerLen := binary.LittleEndian.Uint32(data[5:9])
	if uint64(len(data)) < uint64(9)+uint64(headerLen) {
		return nil, fmt.Errorf("load graph %s: truncated header", name)
	}
	headerStart, payloadStart := 9, 9+int(headerLen)

	var header pgphHeader
	if err := json.Unmarshal(data[headerStart:payloadStart], &header); err != nil {
		return nil, fmt.Errorf("decode pgph header: %w", err)
	}

	var doc payloadDocument
	if err := json.Unmarshal(data[payloadStart:], &doc); err != nil {
		return nil, fmt.Errorf("decode pgph payload: %w", err)
	}
	return &Graph{Nodes: doc.Nodes, Edges: doc.Edges}, nil
}
