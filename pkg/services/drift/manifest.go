package drift

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

const subTag = "!Sub"

// manifestFile is the subset of a CloudFormation template the auditor reads.
// Resources stays a node so document order is preserved.
type manifestFile struct {
	Resources yaml.Node `yaml:"Resources"`
}

type resourceEntry struct {
	Type       string    `yaml:"Type"`
	Properties yaml.Node `yaml:"Properties"`
}

type ruleProperties struct {
	ConfigRuleName string       `yaml:"ConfigRuleName"`
	Scope          *scopeEntry  `yaml:"Scope"`
	Source         *sourceEntry `yaml:"Source"`
}

type scopeEntry struct {
	ComplianceResourceID    string   `yaml:"ComplianceResourceId"`
	ComplianceResourceTypes []string `yaml:"ComplianceResourceTypes"`
	TagKey                  string   `yaml:"TagKey"`
	TagValue                string   `yaml:"TagValue"`
}

type sourceEntry struct {
	Owner            string              `yaml:"Owner"`
	SourceDetails    []sourceDetailEntry `yaml:"SourceDetails"`
	SourceIdentifier yaml.Node           `yaml:"SourceIdentifier"`
}

type sourceDetailEntry struct {
	EventSource               string `yaml:"EventSource"`
	MessageType               string `yaml:"MessageType"`
	MaximumExecutionFrequency string `yaml:"MaximumExecutionFrequency"`
}

// Substitutions resolves the placeholders a manifest may use in a
// substituted source identifier.
type Substitutions struct {
	Partition   string
	Region      string
	AccountID   string
	HomeAccount string
}

func (s Substitutions) Apply(template string) string {
	return strings.NewReplacer(
		"${AWS::Partition}", s.Partition,
		"${AWS::Region}", s.Region,
		"${AWS::AccountId}", s.AccountID,
		"${LambdaAccountId}", s.HomeAccount,
	).Replace(template)
}

// ParseManifest reads a JSON or YAML CloudFormation template and returns its
// rule resources in document order. Other resource types are ignored.
func ParseManifest(body []byte, subs Substitutions) (*domain.Manifest, error) {
	// Literal tabs in a JSON document can only be whitespace, which YAML
	// does not accept as indentation.
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		body = bytes.ReplaceAll(trimmed, []byte("\t"), []byte(" "))
	}

	var file manifestFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedManifest, err)
	}
	resources := file.Resources
	if resources.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: Resources is missing or not a map", domain.ErrMalformedManifest)
	}

	manifest := &domain.Manifest{}
	for i := 0; i+1 < len(resources.Content); i += 2 {
		logicalID := resources.Content[i].Value

		var resource resourceEntry
		if err := resources.Content[i+1].Decode(&resource); err != nil {
			return nil, fmt.Errorf("%w: resource %s: %v", domain.ErrMalformedManifest, logicalID, err)
		}
		if resource.Type != domain.ManagedCheckType {
			continue
		}

		entry, err := parseRule(logicalID, &resource.Properties, subs)
		if err != nil {
			return nil, err
		}
		manifest.Rules = append(manifest.Rules, entry)
	}
	return manifest, nil
}

func parseRule(logicalID string, node *yaml.Node, subs Substitutions) (domain.RuleManifestEntry, error) {
	var props ruleProperties
	if err := node.Decode(&props); err != nil {
		return domain.RuleManifestEntry{}, fmt.Errorf("%w: resource %s: %v", domain.ErrMalformedManifest, logicalID, err)
	}
	if props.ConfigRuleName == "" {
		return domain.RuleManifestEntry{}, fmt.Errorf("%w: resource %s has no ConfigRuleName", domain.ErrMalformedManifest, logicalID)
	}

	entry := domain.RuleManifestEntry{LogicalID: logicalID, RuleName: props.ConfigRuleName}
	if props.Scope != nil {
		entry.Scope = &domain.Scope{
			ComplianceResourceID:    props.Scope.ComplianceResourceID,
			ComplianceResourceTypes: props.Scope.ComplianceResourceTypes,
			TagKey:                  props.Scope.TagKey,
			TagValue:                props.Scope.TagValue,
		}
	}
	if props.Source != nil {
		identifier, err := sourceIdentifier(&props.Source.SourceIdentifier, subs)
		if err != nil {
			return domain.RuleManifestEntry{}, fmt.Errorf("%w: resource %s: %v", domain.ErrMalformedManifest, logicalID, err)
		}
		source := &domain.RuleSource{
			Owner:            props.Source.Owner,
			SourceIdentifier: identifier,
		}
		for _, d := range props.Source.SourceDetails {
			source.SourceDetails = append(source.SourceDetails, domain.SourceDetail{
				EventSource:               d.EventSource,
				MessageType:               d.MessageType,
				MaximumExecutionFrequency: d.MaximumExecutionFrequency,
			})
		}
		entry.Source = source
	}
	return entry, nil
}

// sourceIdentifier accepts a literal, {"Fn::Sub": template}, {"Fn::Sub":
// [template, vars]} or the YAML short form !Sub template.
func sourceIdentifier(node *yaml.Node, subs Substitutions) (string, error) {
	switch node.Kind {
	case 0:
		return "", nil
	case yaml.ScalarNode:
		if node.Tag == subTag {
			return subs.Apply(node.Value), nil
		}
		return node.Value, nil
	case yaml.SequenceNode:
		if node.Tag == subTag && len(node.Content) > 0 {
			return subs.Apply(node.Content[0].Value), nil
		}
	case yaml.MappingNode:
		if len(node.Content) == 2 && node.Content[0].Value == "Fn::Sub" {
			value := node.Content[1]
			if value.Kind == yaml.SequenceNode && len(value.Content) > 0 {
				value = value.Content[0]
			}
			if value.Kind == yaml.ScalarNode {
				return subs.Apply(value.Value), nil
			}
		}
	}
	return "", fmt.Errorf("unsupported SourceIdentifier at line %d", node.Line)
}
