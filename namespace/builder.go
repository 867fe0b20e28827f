// Package namespace provides utilities for constructing topic and key paths
// with consistent namespace prefixing across all services (MQTT, Valkey, Kafka).
package namespace

// Builder constructs namespace-prefixed topics and keys.
type Builder struct {
	namespace string
	selector  string
}

// New creates a new namespace builder.
func New(namespace, selector string) *Builder {
	return &Builder{
		namespace: namespace,
		selector:  selector,
	}
}

// --- MQTT (delimiter: /) ---

// MQTTTagTopic returns the topic for a tag value: {ns}[/{sel}]/tags/{tag}
func (b *Builder) MQTTTagTopic(tag string) string {
	return b.mqttBase() + "/tags/" + tag
}

// MQTTTagWildcard matches every tag topic: {ns}[/{sel}]/tags/+
func (b *Builder) MQTTTagWildcard() string {
	return b.mqttBase() + "/tags/+"
}

// MQTTWriteTopic returns the topic for write requests: {ns}[/{sel}]/write
func (b *Builder) MQTTWriteTopic() string {
	return b.mqttBase() + "/write"
}

// MQTTWriteResponseTopic returns the topic for write responses: {ns}[/{sel}]/write/response
func (b *Builder) MQTTWriteResponseTopic() string {
	return b.mqttBase() + "/write/response"
}

// MQTTStatusTopic returns the topic for the gateway's online state: {ns}[/{sel}]/status
func (b *Builder) MQTTStatusTopic() string {
	return b.mqttBase() + "/status"
}

func (b *Builder) mqttBase() string {
	if b.selector != "" {
		return b.namespace + "/" + b.selector
	}
	return b.namespace
}

// --- Valkey (delimiter: :) ---

// ValkeyTagKey returns the key for a tag value: {ns}[:{sel}]:tags:{tag}
func (b *Builder) ValkeyTagKey(tag string) string {
	return b.valkeyBase() + ":tags:" + tag
}

// ValkeyChangesChannel returns the channel for tag changes: {ns}[:{sel}]:changes
func (b *Builder) ValkeyChangesChannel() string {
	return b.valkeyBase() + ":changes"
}

func (b *Builder) valkeyBase() string {
	if b.selector != "" {
		return b.namespace + ":" + b.selector
	}
	return b.namespace
}

// --- Kafka (delimiter: -) ---

// KafkaTagTopic returns the topic for tag values: {ns}[-{sel}]
// The tag name is used as the message key for partitioning.
func (b *Builder) KafkaTagTopic() string {
	return b.kafkaBase()
}

func (b *Builder) kafkaBase() string {
	if b.selector != "" {
		return b.namespace + "-" + b.selector
	}
	return b.namespace
}
