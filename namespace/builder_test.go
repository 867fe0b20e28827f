package namespace

import "testing"

func TestBuilder(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"mqtt tag", New("plant1", "").MQTTTagTopic("counter"), "plant1/tags/counter"},
		{"mqtt tag selector", New("plant1", "line2").MQTTTagTopic("counter"), "plant1/line2/tags/counter"},
		{"mqtt wildcard", New("plant1", "").MQTTTagWildcard(), "plant1/tags/+"},
		{"mqtt write", New("plant1", "").MQTTWriteTopic(), "plant1/write"},
		{"mqtt write response", New("plant1", "line2").MQTTWriteResponseTopic(), "plant1/line2/write/response"},
		{"mqtt status", New("plant1", "").MQTTStatusTopic(), "plant1/status"},
		{"valkey key", New("plant1", "").ValkeyTagKey("counter"), "plant1:tags:counter"},
		{"valkey key selector", New("plant1", "line2").ValkeyTagKey("counter"), "plant1:line2:tags:counter"},
		{"valkey changes", New("plant1", "").ValkeyChangesChannel(), "plant1:changes"},
		{"kafka topic", New("plant1", "").KafkaTagTopic(), "plant1"},
		{"kafka topic selector", New("plant1", "line2").KafkaTagTopic(), "plant1-line2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}
