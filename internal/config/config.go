/*
trisim - Configuration file parser

Copyright 2026
*/

// Package config implements the line-oriented configuration grammar
// shared by every family (spec §6.6's config-file path): one model
// token per line, an optional device address, then a run of options
// (spec AMBIENT STACK "Configuration"). Unlike the teacher's package-
// level registry, every Parser is an owned value — a caller can build
// as many independent parsers as it likes (one per test, one per
// family) without they interfering with each other.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/dms3/trisim/internal/device"
)

// Option is one comma-joined option token, with its optional "=value"
// and its following comma list (config/configparser.go's Option,
// generalized to plain strings instead of *string).
type Option struct {
	Name     string   // option name, upper-cased
	EqualOpt string   // value after '='
	Value    []string // values of any trailing ",value" tokens
}

// Kind selects how a registered model token's line is parsed (spec
// AMBIENT STACK "Configuration"; config/configparser.go's TypeModel/
// TypeOption/TypeOptions/TypeSwitch).
type Kind int

const (
	KindModel   Kind = 1 + iota // <model> <address> <options...>: a device or a machine family
	KindOption                  // <name> <value>: a single scalar setting (e.g. memory size)
	KindOptions                 // <name> <address-or-value> <options...>: a setting with sub-options
	KindSwitch                  // <name> alone: a boolean flag
)

// CreateFunc builds whatever a registered token names: a device
// (devNum valid, value empty), a machine family (devNum is
// device.NoDev, value carries the address/size token), or a bare
// switch (devNum 0, value empty, options nil).
type CreateFunc func(devNum uint16, value string, options []Option) error

type entry struct {
	create CreateFunc
	kind   Kind
}

// Parser is one configuration grammar instance: its own registry of
// model tokens, independent of any other Parser (spec invariant: no
// package-level globals — each Machine's config load is self-
// contained).
type Parser struct {
	entries map[string]entry
	line    int
}

// New returns an empty parser with no registered tokens.
func New() *Parser {
	return &Parser{entries: map[string]entry{}}
}

// Register binds name (case-insensitively) to fn under kind. Re-
// registering a name replaces its previous binding.
func (p *Parser) Register(name string, kind Kind, fn CreateFunc) {
	p.entries[strings.ToUpper(name)] = entry{create: fn, kind: kind}
}

func (p *Parser) lookup(name string) (entry, bool) {
	e, ok := p.entries[strings.ToUpper(name)]
	return e, ok
}

// LoadFile reads and dispatches every non-comment, non-blank line of
// name in order, stopping at the first error.
func (p *Parser) LoadFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.Load(f)
}

// Load reads and dispatches every line from r (LoadFile's worker,
// split out so tests and embedded config blocks can skip the
// filesystem).
func (p *Parser) Load(r io.Reader) error {
	p.line = 0
	reader := bufio.NewReader(r)
	for {
		text, err := reader.ReadString('\n')
		p.line++
		if len(text) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ln := &line{text: text}
		if perr := p.parseLine(ln); perr != nil {
			return perr
		}
		if err != nil && errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// line is the cursor over one line of input text being parsed.
type line struct {
	text string
	pos  int
}

func (p *Parser) parseLine(ln *line) error {
	name := ln.parseToken()
	if name == "" {
		return nil
	}

	e, ok := p.lookup(name)
	if !ok {
		return fmt.Errorf("config: line %d: unknown token %q", p.line, name)
	}

	switch e.kind {
	case KindModel:
		first, isAddr := ln.parseFirst()
		if !isAddr {
			return fmt.Errorf("config: line %d: %s requires a device address", p.line, name)
		}
		opts, err := ln.parseOptions()
		if err != nil {
			return fmt.Errorf("config: line %d: %w", p.line, err)
		}
		return e.create(first, "", opts)

	case KindOption:
		val, ok := ln.parseFirstString()
		ln.skipSpace()
		if !ok || !ln.isEOL() {
			return fmt.Errorf("config: line %d: %s requires exactly one value", p.line, name)
		}
		if devNum, isAddr := parseHex(val); isAddr {
			return e.create(devNum, val, nil)
		}
		return e.create(device.NoDev, val, nil)

	case KindOptions:
		val, _ := ln.parseFirstString()
		opts, err := ln.parseOptions()
		if err != nil {
			return fmt.Errorf("config: line %d: %w", p.line, err)
		}
		devNum, isAddr := parseHex(val)
		if isAddr {
			return e.create(devNum, val, opts)
		}
		return e.create(device.NoDev, val, opts)

	case KindSwitch:
		ln.skipSpace()
		if !ln.isEOL() {
			return fmt.Errorf("config: line %d: %s takes no options", p.line, name)
		}
		return e.create(0, "", nil)
	}
	return nil
}

func parseHex(s string) (uint16, bool) {
	v, err := strconv.ParseUint(s, 16, 12)
	if err != nil {
		return device.NoDev, false
	}
	return uint16(v), true
}

func (ln *line) skipSpace() {
	for ln.pos < len(ln.text) && unicode.IsSpace(rune(ln.text[ln.pos])) {
		ln.pos++
	}
}

func (ln *line) isEOL() bool {
	return ln.pos >= len(ln.text) || ln.text[ln.pos] == '#'
}

// parseToken reads the leading model/option name (letters and digits).
func (ln *line) parseToken() string {
	ln.skipSpace()
	if ln.isEOL() {
		return ""
	}
	start := ln.pos
	for !ln.isEOL() {
		c := rune(ln.text[ln.pos])
		if !unicode.IsLetter(c) && !unicode.IsNumber(c) {
			break
		}
		ln.pos++
	}
	return strings.ToUpper(ln.text[start:ln.pos])
}

// parseFirst reads the device-address token following a model name and
// reports whether it parses as a hex device number.
func (ln *line) parseFirst() (uint16, bool) {
	val, _ := ln.parseFirstString()
	return parseHex(val)
}

// parseFirstString reads the raw token following a model/option name,
// without requiring it to parse as hex.
func (ln *line) parseFirstString() (string, bool) {
	ln.skipSpace()
	if ln.isEOL() {
		return "", false
	}
	start := ln.pos
	for !ln.isEOL() {
		c := rune(ln.text[ln.pos])
		if !unicode.IsLetter(c) && !unicode.IsNumber(c) {
			break
		}
		ln.pos++
	}
	return ln.text[start:ln.pos], true
}

// parseOptions collects every remaining whitespace-separated option on
// the line.
func (ln *line) parseOptions() ([]Option, error) {
	var opts []Option
	for {
		ln.skipSpace()
		if ln.isEOL() {
			return opts, nil
		}
		name, err := ln.parseName()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return opts, nil
		}
		opt := Option{Name: strings.ToUpper(name)}
		if !ln.isEOL() && ln.text[ln.pos] == '=' {
			v, ok := ln.parseQuoted()
			if !ok {
				return nil, fmt.Errorf("invalid quoted value at position %d", ln.pos)
			}
			opt.EqualOpt = v
		}
		ln.skipSpace()
		for !ln.isEOL() && ln.text[ln.pos] == ',' {
			ln.pos++
			ln.skipSpace()
			v, err := ln.parseName()
			if err != nil {
				return nil, err
			}
			if v != "" {
				opt.Value = append(opt.Value, v)
			}
			ln.skipSpace()
		}
		opts = append(opts, opt)
	}
}

// parseName reads one bare identifier (letters/digits only).
func (ln *line) parseName() (string, error) {
	if ln.isEOL() {
		return "", nil
	}
	c := rune(ln.text[ln.pos])
	if !unicode.IsLetter(c) {
		return "", fmt.Errorf("invalid option at position %d", ln.pos)
	}
	start := ln.pos
	for !ln.isEOL() {
		c := rune(ln.text[ln.pos])
		if !unicode.IsLetter(c) && !unicode.IsNumber(c) {
			break
		}
		ln.pos++
	}
	return ln.text[start:ln.pos], nil
}

// parseQuoted reads the token after '=': either a bare run of
// non-space/non-comma characters, or a "double-quoted string" with ""
// as an escaped quote.
func (ln *line) parseQuoted() (string, bool) {
	ln.pos++ // consume '='
	if ln.isEOL() {
		return "", true
	}
	if ln.text[ln.pos] == '"' {
		ln.pos++
		var sb strings.Builder
		for {
			if ln.pos >= len(ln.text) {
				return "", false
			}
			c := ln.text[ln.pos]
			if c == '"' {
				ln.pos++
				if ln.pos < len(ln.text) && ln.text[ln.pos] == '"' {
					sb.WriteByte('"')
					ln.pos++
					continue
				}
				return sb.String(), true
			}
			sb.WriteByte(c)
			ln.pos++
		}
	}
	start := ln.pos
	for !ln.isEOL() && ln.text[ln.pos] != ',' && !unicode.IsSpace(rune(ln.text[ln.pos])) {
		ln.pos++
	}
	return ln.text[start:ln.pos], true
}
