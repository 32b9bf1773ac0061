// Package catalog maps opaque instrument identifiers to tradable symbols.
package catalog

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-splitter/pkg/response"
)

var ErrInstrumentNotFound = errors.New("instrument not found")

// Instrument is a tradable security
type Instrument struct {
	ID     string `json:"id" yaml:"id"`
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
}

// DefaultInstruments is the catalog used when the configuration lists none
var DefaultInstruments = []Instrument{
	{ID: "a1b2c3d4-0001-4000-8000-000000000001", Symbol: "AAPL", Name: "Apple Inc."},
	{ID: "a1b2c3d4-0002-4000-8000-000000000002", Symbol: "TSLA", Name: "Tesla Inc."},
	{ID: "a1b2c3d4-0003-4000-8000-000000000003", Symbol: "GOOGL", Name: "Alphabet Inc."},
	{ID: "a1b2c3d4-0004-4000-8000-000000000004", Symbol: "MSFT", Name: "Microsoft Corp."},
	{ID: "a1b2c3d4-0005-4000-8000-000000000005", Symbol: "AMZN", Name: "Amazon.com Inc."},
}

// Catalog is a static, read-only instrument lookup
type Catalog struct {
	instruments []Instrument
	byID        map[string]Instrument
}

// New builds a catalog, rejecting duplicate ids or symbols
func New(instruments []Instrument) (*Catalog, error) {
	c := &Catalog{
		instruments: make([]Instrument, 0, len(instruments)),
		byID:        make(map[string]Instrument, len(instruments)),
	}
	symbols := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		if inst.ID == "" || inst.Symbol == "" {
			return nil, fmt.Errorf("instrument requires both id and symbol: %+v", inst)
		}
		if _, exists := c.byID[inst.ID]; exists {
			return nil, fmt.Errorf("duplicate instrument id %s", inst.ID)
		}
		if symbols[inst.Symbol] {
			return nil, fmt.Errorf("duplicate instrument symbol %s", inst.Symbol)
		}
		symbols[inst.Symbol] = true
		c.byID[inst.ID] = inst
		c.instruments = append(c.instruments, inst)
	}
	return c, nil
}

// Default returns the built-in five-stock catalog
func Default() *Catalog {
	c, _ := New(DefaultInstruments)
	return c
}

// Resolve looks up an instrument by id
func (c *Catalog) Resolve(id string) (Instrument, error) {
	inst, ok := c.byID[id]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}
	return inst, nil
}

// List returns all instruments in catalog order
func (c *Catalog) List() []Instrument {
	out := make([]Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// GinHandlers contains HTTP handlers for catalog endpoints
type GinHandlers struct {
	catalog *Catalog
}

func NewGinHandlers(catalog *Catalog) *GinHandlers {
	return &GinHandlers{catalog: catalog}
}

// ListHandler handles GET requests listing the available instruments
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.catalog.List())
	}
}
