// Package guildconfig reads and writes per-guild settings stored in the
// "config" document as section -> key -> value.
package guildconfig

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/document"
)

// Sections and keys read by the moderation subsystem.
const (
	SectionStaff   = "staff"
	SectionLogging = "logging"

	KeyStaffRole = "staffrole"
	KeyAppealURL = "appealurl"
	KeyRulesURL  = "rulesurl"
	KeyModLog    = "modlog"
)

// ErrNotSnowflake is returned when a value is present but is not an id.
var ErrNotSnowflake = errors.New("config value is not a snowflake")

// UseNumber keeps large ids exact when values were written as JSON numbers.
var codec = sonic.Config{UseNumber: true, SortMapKeys: true}.Froze()

type configDocument map[string]map[string]any

// Provider reads guild settings.
type Provider struct {
	docs   document.Store
	locker *document.Locker
}

// NewProvider creates a Provider over the given document store.
func NewProvider(docs document.Store, locker *document.Locker) *Provider {
	return &Provider{docs: docs, locker: locker}
}

// Get returns the value of section.key. The boolean is false when the key is
// unset or empty.
func (p *Provider) Get(ctx context.Context, guildID snowflake.ID, section, key string) (string, bool, error) {
	doc, err := p.load(ctx, guildID)
	if err != nil {
		return "", false, err
	}

	raw, ok := doc[section][key]
	if !ok || raw == nil {
		return "", false, nil
	}

	value := stringify(raw)
	if value == "" {
		return "", false, nil
	}

	return value, true, nil
}

// GetID returns section.key parsed as a snowflake.
func (p *Provider) GetID(ctx context.Context, guildID snowflake.ID, section, key string) (snowflake.ID, bool, error) {
	value, ok, err := p.Get(ctx, guildID, section, key)
	if err != nil || !ok {
		return 0, false, err
	}

	id, err := snowflake.Parse(value)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s.%s=%q", ErrNotSnowflake, section, key, value)
	}

	return id, true, nil
}

// Set stores section.key. An empty value removes the key.
func (p *Provider) Set(ctx context.Context, guildID snowflake.ID, section, key, value string) error {
	unlock := p.locker.Lock(guildID, document.NameConfig)
	defer unlock()

	doc, err := p.load(ctx, guildID)
	if err != nil {
		return err
	}

	if value == "" {
		delete(doc[section], key)
		if len(doc[section]) == 0 {
			delete(doc, section)
		}
	} else {
		if doc[section] == nil {
			doc[section] = make(map[string]any)
		}
		doc[section][key] = value
	}

	data, err := codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config document: %w", err)
	}

	if err := p.docs.Set(ctx, guildID, document.NameConfig, data); err != nil {
		return fmt.Errorf("failed to write config document: %w", err)
	}

	return nil
}

// All returns every setting of the guild as flattened "section.key" pairs.
func (p *Provider) All(ctx context.Context, guildID snowflake.ID) (map[string]string, error) {
	doc, err := p.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for section, keys := range doc {
		for key, raw := range keys {
			if raw == nil {
				continue
			}
			values[section+"."+key] = stringify(raw)
		}
	}

	return values, nil
}

func (p *Provider) load(ctx context.Context, guildID snowflake.ID) (configDocument, error) {
	data, err := p.docs.Get(ctx, guildID, document.NameConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read config document: %w", err)
	}

	doc := make(configDocument)
	if len(data) == 0 {
		return doc, nil
	}

	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}

	return doc, nil
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
