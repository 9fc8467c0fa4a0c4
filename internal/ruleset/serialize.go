package ruleset

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// serializedRule is the on-disk / on-wire form of one rule.
type serializedRule struct {
	Pattern    []model.Segment        `yaml:"pattern" json:"pattern"`
	Source     model.Source           `yaml:"source" json:"source"`
	Predicted  map[model.Field]int    `yaml:"predicted_fields" json:"predicted_fields"`
	Support    int                    `yaml:"support" json:"support"`
	Confidence float64                `yaml:"confidence" json:"confidence"`
}

type serializedSet struct {
	Rules []serializedRule `yaml:"rules"`
}

// MarshalYAML renders the set as an ordered rule list: sources sorted,
// rules in ranked order within each source. The output is deterministic
// for identical inputs.
func (rs *RuleSet) MarshalYAML() ([]byte, error) {
	var out serializedSet
	for _, source := range rs.Sources() {
		for _, r := range rs.rules[source] {
			out.Rules = append(out.Rules, serializedRule{
				Pattern:    r.Pattern,
				Source:     source,
				Predicted:  r.Pattern.PredictedFields(),
				Support:    r.Support,
				Confidence: r.Confidence,
			})
		}
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "ruleset: marshal yaml")
	}
	return data, nil
}

// UnmarshalYAML rebuilds a RuleSet from its serialized form. Ordering is
// recomputed from the total rule order, never trusted from the input.
func UnmarshalYAML(data []byte) (*RuleSet, error) {
	var in serializedSet
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrap(err, "ruleset: unmarshal yaml")
	}
	fragments := make(map[model.Source][]model.Rule)
	for _, sr := range in.Rules {
		fragments[sr.Source] = append(fragments[sr.Source], model.Rule{
			Pattern:    sr.Pattern,
			Source:     sr.Source,
			Support:    sr.Support,
			Confidence: sr.Confidence,
		})
	}
	return Build(fragments), nil
}
