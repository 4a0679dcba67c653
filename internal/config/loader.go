package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration. path names an optional YAML file
// ("" means skip); a missing file is not an error. Environment variables
// override everything.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// defaults + env only
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTCORP_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTCORP_CORS_ORIGIN")

	setString(&cfg.Postgres.DSN, "AGENTCORP_POSTGRES_DSN")

	setString(&cfg.NATS.URL, "AGENTCORP_NATS_URL")

	setString(&cfg.LLM.DefaultProvider, "AGENTCORP_LLM_PROVIDER")
	setString(&cfg.LLM.OpenAI.BaseURL, "AGENTCORP_OPENAI_BASE_URL")
	setString(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.OpenAI.Model, "AGENTCORP_OPENAI_MODEL")
	setString(&cfg.LLM.Anthropic.BaseURL, "AGENTCORP_ANTHROPIC_BASE_URL")
	setString(&cfg.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.Anthropic.Model, "AGENTCORP_ANTHROPIC_MODEL")

	setString(&cfg.Logging.Level, "AGENTCORP_LOG_LEVEL")

	setString(&cfg.Auth.APIKeyHash, "AGENTCORP_API_KEY_HASH")

	setString(&cfg.MCP.Addr, "AGENTCORP_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "AGENTCORP_MCP_API_KEY")

	setString(&cfg.Company.Name, "AGENTCORP_COMPANY_NAME")
	setString(&cfg.Company.BusinessContext, "AGENTCORP_BUSINESS_CONTEXT")
	setString(&cfg.Company.Workspace, "AGENTCORP_WORKSPACE")
	setString(&cfg.Company.OutputDir, "AGENTCORP_OUTPUT_DIR")
	setString(&cfg.Company.RolesDir, "AGENTCORP_ROLES_DIR")

	setInt(&cfg.Autonomous.MaxCycles, "AGENTCORP_MAX_CYCLES")
	setInt(&cfg.Autonomous.MaxWavesPerCycle, "AGENTCORP_MAX_WAVES")
	setInt(&cfg.Autonomous.MaxAgentIterations, "AGENTCORP_MAX_ITERATIONS")
	setInt(&cfg.Autonomous.MaxTotalTasks, "AGENTCORP_MAX_TOTAL_TASKS")
	setDuration(&cfg.Autonomous.MaxTime, "AGENTCORP_MAX_TIME")
	setFloat(&cfg.Autonomous.MaxCostUSD, "AGENTCORP_MAX_COST_USD")
	setInt(&cfg.Autonomous.MaxParallel, "AGENTCORP_MAX_PARALLEL")
}

func (c Config) validate() error {
	switch c.LLM.DefaultProvider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.DefaultProvider)
	}
	if c.Autonomous.MaxAgentIterations < 1 {
		return fmt.Errorf("config: max_agent_iterations must be >= 1, got %d", c.Autonomous.MaxAgentIterations)
	}
	if c.Autonomous.MaxParallel < 1 {
		return fmt.Errorf("config: max_parallel must be >= 1, got %d", c.Autonomous.MaxParallel)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
