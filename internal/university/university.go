// Package university loads the static university dataset, keeps it in a
// durable cache with a version and TTL policy, and answers substring search
// over the in-memory copy.
package university

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// University is one record of the dataset. Names are not unique.
type University struct {
	Name          string   `json:"name"`
	Country       string   `json:"country"`
	StateProvince string   `json:"state-province"`
	AlphaTwoCode  string   `json:"alpha_two_code"`
	Domains       []string `json:"domains"`
	WebPages      []string `json:"web_pages"`
}

var ErrInvalidDataset = errors.New("university: invalid dataset")

// UnmarshalJSON decodes a record and rejects objects without a name or country.
// A null state-province decodes as "".
func (u *University) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name          *string  `json:"name"`
		Country       *string  `json:"country"`
		StateProvince *string  `json:"state-province"`
		AlphaTwoCode  *string  `json:"alpha_two_code"`
		Domains       []string `json:"domains"`
		WebPages      []string `json:"web_pages"`
	}
	if !isJSONKind(b, '{') {
		return fmt.Errorf("%w: record is not an object", ErrInvalidDataset)
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Name == nil || *raw.Name == "" {
		return fmt.Errorf("%w: record without name", ErrInvalidDataset)
	}
	if raw.Country == nil {
		return fmt.Errorf("%w: %q has no country", ErrInvalidDataset, *raw.Name)
	}
	*u = University{
		Name:     *raw.Name,
		Country:  *raw.Country,
		Domains:  raw.Domains,
		WebPages: raw.WebPages,
	}
	if raw.StateProvince != nil {
		u.StateProvince = *raw.StateProvince
	}
	if raw.AlphaTwoCode != nil {
		u.AlphaTwoCode = *raw.AlphaTwoCode
	}
	return nil
}

// Homepage returns the first listed web page, if any.
func (u University) Homepage() (string, bool) {
	if len(u.WebPages) == 0 || u.WebPages[0] == "" {
		return "", false
	}
	return u.WebPages[0], true
}

// DecodeDataset parses a JSON array of records. Any invalid record rejects
// the whole dataset.
func DecodeDataset(b []byte) ([]University, error) {
	if !isJSONKind(b, '[') {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrInvalidDataset)
	}
	var out []University
	if err := json.Unmarshal(b, &out); err != nil {
		if errors.Is(err, ErrInvalidDataset) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if out == nil {
		out = []University{}
	}
	return out, nil
}

func isJSONKind(b []byte, open byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == open
}
