package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so absent keys can be told
// apart from zero values.
type fileConfig struct {
	Server struct {
		Host *string `yaml:"host"`
		Port *int    `yaml:"port"`
	} `yaml:"server"`
	OpenAI struct {
		BaseURL         *string `yaml:"base_url"`
		APIKey          *string `yaml:"api_key"`
		ChatModel       *string `yaml:"chat_model"`
		EmbedModel      *string `yaml:"embed_model"`
		EmbedDimensions *int    `yaml:"embed_dimensions"`
	} `yaml:"openai"`
	Storage struct {
		DataDir *string `yaml:"data_dir"`
	} `yaml:"storage"`
	WhatsApp struct {
		APIBaseURL    *string `yaml:"api_base_url"`
		AccessToken   *string `yaml:"access_token"`
		PhoneNumberID *string `yaml:"phone_number_id"`
		VerifyToken   *string `yaml:"verify_token"`
	} `yaml:"whatsapp"`
	Clinic struct {
		DemoClinicID *string `yaml:"demo_clinic_id"`
		DemoName     *string `yaml:"demo_name"`
	} `yaml:"clinic"`
	Retrieval struct {
		TopK *int `yaml:"top_k"`
	} `yaml:"retrieval"`
	Log struct {
		Level *string `yaml:"level"`
	} `yaml:"log"`
}

// applyFile overlays values from a YAML config file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setInt(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.OpenAI.BaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.OpenAI.APIKey, fc.OpenAI.APIKey)
	setString(&cfg.OpenAI.ChatModel, fc.OpenAI.ChatModel)
	setString(&cfg.OpenAI.EmbedModel, fc.OpenAI.EmbedModel)
	setInt(&cfg.OpenAI.EmbedDimensions, fc.OpenAI.EmbedDimensions)
	setString(&cfg.Storage.DataDir, fc.Storage.DataDir)
	setString(&cfg.WhatsApp.APIBaseURL, fc.WhatsApp.APIBaseURL)
	setString(&cfg.WhatsApp.AccessToken, fc.WhatsApp.AccessToken)
	setString(&cfg.WhatsApp.PhoneNumberID, fc.WhatsApp.PhoneNumberID)
	setString(&cfg.WhatsApp.VerifyToken, fc.WhatsApp.VerifyToken)
	setString(&cfg.Clinic.DemoClinicID, fc.Clinic.DemoClinicID)
	setString(&cfg.Clinic.DemoName, fc.Clinic.DemoName)
	setInt(&cfg.Retrieval.TopK, fc.Retrieval.TopK)
	setString(&cfg.Log.Level, fc.Log.Level)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
