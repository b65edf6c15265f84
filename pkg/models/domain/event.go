package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeScheduled         MessageType = "ScheduledNotification"
	MessageTypeConfigurationItem MessageType = "ConfigurationItemChangeNotification"
	MessageTypeOversizedItem     MessageType = "OversizedConfigurationItemChangeNotification"
)

func (m MessageType) Supported() bool {
	switch m {
	case MessageTypeScheduled, MessageTypeConfigurationItem, MessageTypeOversizedItem:
		return true
	default:
		return false
	}
}

// TriggerEvent is the payload delivered by the scheduler or event bus for one
// rule invocation. InvokingEvent and RuleParameters are JSON documents encoded
// as strings.
type TriggerEvent struct {
	InvokingEvent    string `json:"invokingEvent"`
	RuleParameters   string `json:"ruleParameters,omitempty"`
	ResultToken      string `json:"resultToken"`
	ExecutionRoleArn string `json:"executionRoleArn"`
	AccountID        string `json:"accountId"`
	ConfigRuleArn    string `json:"configRuleArn"`
	ConfigRuleName   string `json:"configRuleName"`
	EventLeftScope   bool   `json:"eventLeftScope"`
}

type InvokingEvent struct {
	MessageType              MessageType               `json:"messageType"`
	NotificationCreationTime time.Time                 `json:"notificationCreationTime"`
	AwsAccountID             string                    `json:"awsAccountId"`
	RecordVersion            string                    `json:"recordVersion,omitempty"`
	ConfigurationItem        *ConfigurationItem        `json:"configurationItem,omitempty"`
	ConfigurationItemSummary *ConfigurationItemSummary `json:"configurationItemSummary,omitempty"`
}

// ConfigurationItem is the normalized description of the subject under evaluation.
type ConfigurationItem struct {
	ResourceType  string            `json:"resourceType"`
	ResourceID    string            `json:"resourceId"`
	ResourceName  string            `json:"resourceName,omitempty"`
	ARN           string            `json:"ARN,omitempty"`
	AwsAccountID  string            `json:"awsAccountId"`
	AwsRegion     string            `json:"awsRegion,omitempty"`
	Status        ItemStatus        `json:"configurationItemStatus"`
	CaptureTime   time.Time         `json:"configurationItemCaptureTime"`
	Configuration json.RawMessage   `json:"configuration,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ConfigurationItemSummary is all an oversized change notification carries.
type ConfigurationItemSummary struct {
	ResourceType string     `json:"resourceType"`
	ResourceID   string     `json:"resourceId"`
	Status       ItemStatus `json:"configurationItemStatus"`
	CaptureTime  time.Time  `json:"configurationItemCaptureTime"`
}

type ItemStatus string

const (
	ItemStatusOK                 ItemStatus = "OK"
	ItemStatusDiscovered         ItemStatus = "ResourceDiscovered"
	ItemStatusNotRecorded        ItemStatus = "ResourceNotRecorded"
	ItemStatusDeleted            ItemStatus = "ResourceDeleted"
	ItemStatusDeletedNotRecorded ItemStatus = "ResourceDeletedNotRecorded"
)

func (s ItemStatus) Deleted() bool {
	return s == ItemStatusDeleted || s == ItemStatusDeletedNotRecorded
}

// Invoking decodes the embedded invoking event document.
func (e TriggerEvent) Invoking() (*InvokingEvent, error) {
	if e.InvokingEvent == "" {
		return nil, fmt.Errorf("invokingEvent is not defined")
	}
	var ie InvokingEvent
	if err := json.Unmarshal([]byte(e.InvokingEvent), &ie); err != nil {
		return nil, fmt.Errorf("failed to decode invokingEvent: %w", err)
	}
	if ie.MessageType == "" {
		return nil, fmt.Errorf("messageType is not defined")
	}
	return &ie, nil
}

// Parameters decodes the rule parameters. An absent document yields an empty set.
func (e TriggerEvent) Parameters() (Parameters, error) {
	params := Parameters{}
	if e.RuleParameters == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(e.RuleParameters), &params); err != nil {
		return nil, fmt.Errorf("failed to decode ruleParameters: %w", err)
	}
	return params, nil
}

type Parameters map[string]any

// String returns the parameter as a trimmed string; ok is false when the
// parameter is absent or blank.
func (p Parameters) String(key string) (string, bool) {
	raw, exists := p[key]
	if !exists || raw == nil {
		return "", false
	}
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	default:
		value = fmt.Sprint(v)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
