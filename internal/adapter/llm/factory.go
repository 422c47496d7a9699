package llm

import (
	"log"

	"github.com/xiaot623/planweave/internal/config"
)

// NewCaller selects the model provider from the loaded configuration.
// Selection happens once at construction; later environment changes do not
// flip providers mid-run.
func NewCaller(cfg *config.Config) Caller {
	switch {
	case cfg.FireworksKey != "":
		log.Printf("INFO: model provider: fireworks (%s)", cfg.FireworksModel)
		return NewFireworksClient(cfg.FireworksKey, cfg.FireworksModel)
	case cfg.OpenAIAPIKey != "":
		log.Printf("INFO: model provider: openai")
		return NewOpenAIClient(cfg.OpenAIAPIKey)
	default:
		log.Printf("INFO: no model credentials configured, using mock provider")
		return NewMockCaller()
	}
}
