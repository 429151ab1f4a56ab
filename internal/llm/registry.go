package llm

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/Otitodev/wa-assist/config"
	"github.com/Otitodev/wa-assist/internal/domain"
)

// DecodeOptions maps loosely-typed settings onto Options. Settings arrive as
// generic maps from config files and the admin API, so the decode tolerates
// extra keys and string-typed numbers.
func DecodeOptions(raw map[string]interface{}) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(raw); err != nil {
		return opts, errors.Wrap(err, "decode llm options")
	}
	return opts, nil
}

// Registry holds the configured providers and picks one per tenant.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry builds every provider with an apikey configured. The config
// default provider is the fallback for tenants without an explicit choice.
func NewRegistry(cfg config.LlmConfig) (*Registry, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	reg := &Registry{
		providers: map[string]Provider{},
		fallback:  cfg.Provider,
	}
	if cfg.AnthropicApikey != "" {
		opts, err := DecodeOptions(map[string]interface{}{
			"apikey":     cfg.AnthropicApikey,
			"model":      cfg.Model,
			"max_tokens": cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		reg.providers["anthropic"] = NewAnthropic(opts, timeout)
	}
	if cfg.OpenaiApikey != "" {
		opts, err := DecodeOptions(map[string]interface{}{
			"apikey":     cfg.OpenaiApikey,
			"model":      cfg.Model,
			"max_tokens": cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		reg.providers["openai"] = NewOpenAI(opts, timeout)
	}
	if len(reg.providers) == 0 {
		return nil, errors.New("no llm provider configured, set an apikey")
	}
	if _, ok := reg.providers[reg.fallback]; !ok {
		for name := range reg.providers {
			reg.fallback = name
			break
		}
	}
	return reg, nil
}

// Register adds or replaces a provider by name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// ForTenant returns the tenant's configured provider, falling back to the
// registry default when the tenant has none.
func (r *Registry) ForTenant(tenant *domain.Tenant) (Provider, error) {
	name := tenant.LlmProvider
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Wrap(ErrNoProvider, name)
	}
	return p, nil
}
