// Package buckets splits a model snapshot into the named JSON payloads stored
// by the SQL snapshot persisters, one row per bucket.
package buckets

import (
	"encoding/json"
	"fmt"

	"geomodel/pkg/domain"
)

// Names lists the buckets in write order.
var Names = []string{
	"meta",
	"series",
	"formations",
	"faults",
	"interfaces",
	"orientations",
	"grid",
	"additional_data",
	"solution",
}

type meta struct {
	SchemaVersion int                  `json:"schema_version"`
	Project       string               `json:"project"`
	Revision      uint64               `json:"revision"`
	Pipeline      domain.PipelineState `json:"pipeline"`
	NextInterface int                  `json:"next_interface_index"`
	NextOrient    int                  `json:"next_orientation_index"`
}

// Payload is one encoded bucket.
type Payload struct {
	Bucket string
	Data   []byte
}

// Encode marshals snap into one payload per bucket, in Names order.
func Encode(snap domain.Snapshot) ([]Payload, error) {
	out := make([]Payload, 0, len(Names))
	for _, bucket := range Names {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "meta":
			data, err = json.Marshal(meta{
				SchemaVersion: snap.SchemaVersion,
				Project:       snap.Project,
				Revision:      snap.Revision,
				Pipeline:      snap.Pipeline,
				NextInterface: snap.NextInterface,
				NextOrient:    snap.NextOrient,
			})
		case "series":
			data, err = json.Marshal(snap.Series)
		case "formations":
			data, err = json.Marshal(snap.Formations)
		case "faults":
			data, err = json.Marshal(snap.Faults)
		case "interfaces":
			data, err = json.Marshal(snap.Interfaces)
		case "orientations":
			data, err = json.Marshal(snap.Orientations)
		case "grid":
			data, err = json.Marshal(snap.Grid)
		case "additional_data":
			data, err = json.Marshal(snap.AdditionalData)
		case "solution":
			data, err = json.Marshal(snap.Solution)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out = append(out, Payload{Bucket: bucket, Data: data})
	}
	return out, nil
}

// Decode rebuilds a snapshot from stored payloads. It reports false when no
// meta bucket was stored. Unknown buckets are ignored.
func Decode(payloads []Payload) (domain.Snapshot, bool, error) {
	var (
		snap  domain.Snapshot
		m     meta
		found bool
	)
	for _, p := range payloads {
		if len(p.Data) == 0 {
			continue
		}
		var target any
		switch p.Bucket {
		case "meta":
			target = &m
			found = true
		case "series":
			target = &snap.Series
		case "formations":
			target = &snap.Formations
		case "faults":
			target = &snap.Faults
		case "interfaces":
			target = &snap.Interfaces
		case "orientations":
			target = &snap.Orientations
		case "grid":
			target = &snap.Grid
		case "additional_data":
			target = &snap.AdditionalData
		case "solution":
			target = &snap.Solution
		default:
			continue
		}
		if err := json.Unmarshal(p.Data, target); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode %s: %w", p.Bucket, err)
		}
	}
	if !found {
		return domain.Snapshot{}, false, nil
	}
	snap.SchemaVersion = m.SchemaVersion
	snap.Project = m.Project
	snap.Revision = m.Revision
	snap.Pipeline = m.Pipeline
	snap.NextInterface = m.NextInterface
	snap.NextOrient = m.NextOrient
	return snap, true, nil
}
