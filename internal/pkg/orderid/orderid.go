// Package orderid generates merchant-side order identifiers of the form ORD-<digits>.
package orderid

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sony/sonyflake"
)

const Prefix = "ORD-"

// Generator produces unique, time-ordered order ids. It is safe for concurrent use.
type Generator struct {
	sf *sonyflake.Sonyflake
}

// NewGenerator creates a generator. Each running instance needs its own machineID.
func NewGenerator(machineID uint16) (*Generator, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if sf == nil {
		return nil, errors.New("failed to initialize order id generator")
	}
	return &Generator{sf: sf}, nil
}

func (g *Generator) Next() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", err
	}
	return Prefix + strconv.FormatUint(id, 10), nil
}

// Valid reports whether s looks like an id produced by Next.
func Valid(s string) bool {
	digits, ok := strings.CutPrefix(s, Prefix)
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
