package models

import (
	"encoding/json"
	"fmt"
)

// PointPrompts holds click coordinates for one segmentation call.
//
// Clients send either a flat list of points ([[x,y], ...]) or a list of
// point groups ([[[x,y], ...], ...]). Both decode into one canonical group
// so the segmentation client never has to inspect shapes at call time.
type PointPrompts [][2]float64

func (p *PointPrompts) UnmarshalJSON(data []byte) error {
	var flat [][2]float64
	if err := json.Unmarshal(data, &flat); err == nil {
		*p = flat
		return nil
	}

	var grouped [][][2]float64
	if err := json.Unmarshal(data, &grouped); err == nil {
		var out [][2]float64
		for _, group := range grouped {
			out = append(out, group...)
		}
		*p = out
		return nil
	}

	return fmt.Errorf("points must be [[x,y],...] or [[[x,y],...],...]")
}

// LabelPrompts holds the foreground/background label per point (1/0).
// Accepts a flat list ([1,0,...]) or a list of groups ([[1,0,...],...]).
type LabelPrompts []int

func (l *LabelPrompts) UnmarshalJSON(data []byte) error {
	var flat []int
	if err := json.Unmarshal(data, &flat); err == nil {
		*l = flat
		return nil
	}

	var grouped [][]int
	if err := json.Unmarshal(data, &grouped); err == nil {
		var out []int
		for _, group := range grouped {
			out = append(out, group...)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("labels must be [l,...] or [[l,...],...]")
}
