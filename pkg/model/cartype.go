package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CarType is the closed enumeration of rentable vehicle categories.
type CarType string

const (
	Sedan CarType = "SEDAN"
	SUV   CarType = "SUV"
	Van   CarType = "VAN"
)

var AllCarTypes = []CarType{Sedan, SUV, Van}

// Code is the lowercase wire alias for the category.
func (t CarType) Code() string {
	return strings.ToLower(string(t))
}

func allowedCodes() string {
	codes := make([]string, 0, len(AllCarTypes))
	for _, t := range AllCarTypes {
		codes = append(codes, t.Code())
	}
	return strings.Join(codes, ", ")
}

// ParseCarType accepts the canonical name or the lowercase code,
// case-insensitively.
func ParseCarType(value string) (CarType, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("carType is required")
	}
	for _, t := range AllCarTypes {
		if strings.EqualFold(v, string(t)) || strings.EqualFold(v, t.Code()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("Unknown carType: %s (allowed: %s)", value, allowedCodes())
}

func (t CarType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Code())
}

func (t *CarType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCarType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
