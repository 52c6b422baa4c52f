package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/metaharvest"
	"github.com/tordrt/metaharvest/internal/logging"
)

type resolvedConfig struct {
	Mode            string             `yaml:"mode"`
	OutputDir       string             `yaml:"output_dir"`
	LogFile         string             `yaml:"log_file"`
	RequestTimeout  string             `yaml:"request_timeout"`
	Instances       []resolvedInstance `yaml:"instances"`
	APIMap          map[string]string  `yaml:"api_map,omitempty"`
	DefaultTemplate string             `yaml:"default_template"`
	Templates       []resolvedTemplate `yaml:"templates"`
}

type resolvedInstance struct {
	Subdomain string `yaml:"subdomain"`
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
}

type resolvedTemplate struct {
	Key     string `yaml:"key"`
	URL     string `yaml:"url"`
	Payload string `yaml:"payload"`
}

func newConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long:  `Loads the configuration, applies environment overrides and prints the instances and request templates that a harvest would use. Tokens are redacted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := metaharvest.LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg, cleanSubdomains(f.subdomains))
		},
	}
}

func printConfig(w io.Writer, cfg *metaharvest.Config, subdomains []string) error {
	instances, err := cfg.Instances(subdomains)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	out := resolvedConfig{
		Mode:            "legacy",
		OutputDir:       cfg.OutputDir,
		LogFile:         cfg.LogFile,
		RequestTimeout:  cfg.Timeout().String(),
		APIMap:          cfg.APIMap,
		DefaultTemplate: registry.Dispatcher().DefaultKey(),
	}
	if cfg.MultiInstance() {
		out.Mode = "multi-instance"
	}

	for _, inst := range instances {
		out.Instances = append(out.Instances, resolvedInstance{
			Subdomain: inst.Subdomain,
			BaseURL:   inst.BaseURL,
			AuthToken: logging.Redact(inst.AuthToken),
		})
	}

	conn := registry.ConnectionsTemplate()
	out.Templates = append(out.Templates, resolvedTemplate{Key: conn.Key, URL: conn.URL, Payload: string(conn.Payload)})
	for _, key := range registry.Keys() {
		tmpl, _ := registry.Template(key)
		out.Templates = append(out.Templates, resolvedTemplate{Key: tmpl.Key, URL: tmpl.URL, Payload: string(tmpl.Payload)})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
