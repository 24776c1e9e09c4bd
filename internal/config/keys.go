package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "AURA_SERVER_HOST", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
	},
	{
		env: "AURA_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "AURA_OPENAI_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
	},
	{
		env: "AURA_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		env: "AURA_OPENAI_CHAT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
	},
	{
		env: "AURA_OPENAI_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "AURA_OPENAI_EMBED_DIMENSIONS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedDimensions = v.(int) },
	},
	{
		env: "AURA_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "AURA_WHATSAPP_API_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.WhatsApp.APIBaseURL = v.(string) },
	},
	{
		env: "AURA_WHATSAPP_ACCESS_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.WhatsApp.AccessToken = v.(string) },
	},
	{
		env: "AURA_WHATSAPP_PHONE_NUMBER_ID", typ: kString,
		apply: func(cfg *Config, v any) { cfg.WhatsApp.PhoneNumberID = v.(string) },
	},
	{
		env: "AURA_WHATSAPP_VERIFY_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.WhatsApp.VerifyToken = v.(string) },
	},
	{
		env: "AURA_DEMO_CLINIC_ID", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Clinic.DemoClinicID = v.(string) },
	},
	{
		env: "AURA_RETRIEVAL_TOP_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		env: "AURA_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
