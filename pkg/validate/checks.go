package validate

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Built-in parameter checks for the stock node types. Editors may override
// any of these through Register.

type modelParams struct {
	Model       string  `mapstructure:"model"`
	Prompt      string  `mapstructure:"prompt"`
	Temperature float64 `mapstructure:"temperature"`
}

type codeParams struct {
	Language string `mapstructure:"language"`
	Script   string `mapstructure:"script"`
}

type databaseParams struct {
	DatasourceID string `mapstructure:"datasource_id"`
	Query        string `mapstructure:"query"`
}

type knowledgeParams struct {
	BaseIDs []string `mapstructure:"base_ids"`
	TopK    int      `mapstructure:"top_k"`
}

type pluginParams struct {
	PluginID string `mapstructure:"plugin_id"`
	Action   string `mapstructure:"action"`
}

type iterationParams struct {
	Parallel  bool `mapstructure:"parallel"`
	BatchSize int  `mapstructure:"batch_size"`
}

func decodeParams(n *domain.Node, out any) error {
	if err := mapstructure.Decode(n.Params, out); err != nil {
		return fmt.Errorf("decode %s params: %w", n.Type, err)
	}
	return nil
}

func registerBuiltins(c *Checker) {
	c.Register(domain.NodeTypeModel, func(n *domain.Node) error {
		var p modelParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("model required")
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("temperature out of range: %v", p.Temperature)
		}
		return nil
	})

	c.Register(domain.NodeTypeCode, func(n *domain.Node) error {
		var p codeParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Script) == "" {
			return fmt.Errorf("script required")
		}
		return nil
	})

	c.Register(domain.NodeTypeDatabase, func(n *domain.Node) error {
		var p databaseParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if p.DatasourceID == "" {
			return fmt.Errorf("datasource required")
		}
		if strings.TrimSpace(p.Query) == "" {
			return fmt.Errorf("query required")
		}
		return nil
	})

	c.Register(domain.NodeTypeKnowledge, func(n *domain.Node) error {
		var p knowledgeParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if len(p.BaseIDs) == 0 {
			return fmt.Errorf("at least one knowledge base required")
		}
		if p.TopK < 0 {
			return fmt.Errorf("top_k must not be negative")
		}
		return nil
	})

	c.Register(domain.NodeTypePlugin, func(n *domain.Node) error {
		var p pluginParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if p.PluginID == "" {
			return fmt.Errorf("plugin required")
		}
		return nil
	})

	c.Register(domain.NodeTypeIteration, func(n *domain.Node) error {
		var p iterationParams
		if err := decodeParams(n, &p); err != nil {
			return err
		}
		if p.BatchSize < 0 {
			return fmt.Errorf("batch_size must not be negative")
		}
		for _, in := range n.Inputs {
			if !in.Type.IsArray() {
				return fmt.Errorf("iteration input %q must be an array type", in.Name)
			}
		}
		return nil
	})
}
