package service

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator assigns message ids.
type IDGenerator interface {
	Generate() (string, error)
}

// ULIDGenerator generates lexicographically sortable message ids. Ids made
// within one millisecond stay ordered.
type ULIDGenerator struct {
	now func() time.Time
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{now: time.Now}
}

func (g *ULIDGenerator) Generate() (string, error) {
	id, err := ulid.New(ulid.Timestamp(g.now()), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}
