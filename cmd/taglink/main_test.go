package main

import (
	"reflect"
	"testing"
	"time"

	"taglink/config"
	"taglink/kafka"
)

func TestPreprocessLogDebugFlag(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no flag", []string{"-d"}, []string{"-d"}},
		{"bare at end", []string{"-d", "-log-debug"}, []string{"-d", "-log-debug", "all"}},
		{"bare before flag", []string{"--log-debug", "-d"}, []string{"--log-debug", "all", "-d"}},
		{"with value", []string{"-log-debug", "mqtt"}, []string{"-log-debug", "mqtt"}},
		{"with equals", []string{"-log-debug=tagman", "-d"}, []string{"-log-debug=tagman", "-d"}},
		{"double dash equals", []string{"--log-debug=api"}, []string{"--log-debug=api"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := preprocessLogDebugFlag(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDebugFilter(t *testing.T) {
	for in, want := range map[string]string{"all": "", "true": "", "1": "", "mqtt,kafka": "mqtt,kafka"} {
		if got := debugFilter(in); got != want {
			t.Errorf("debugFilter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKafkaConfigs(t *testing.T) {
	got := kafkaConfigs([]config.KafkaConfig{
		{Name: "defaults", Enabled: true},
		{
			Name:          "custom",
			Brokers:       []string{"k1:9092", "k2:9092"},
			SASLMechanism: "SCRAM-SHA-256",
			Username:      "u",
			RequiredAcks:  1,
			MaxRetries:    7,
			RetryBackoff:  time.Second,
			Selector:      "line1",
			Topic:         "custom-topic",
		},
	})
	if len(got) != 2 {
		t.Fatalf("got %d configs", len(got))
	}

	d := got[0]
	def := kafka.DefaultConfig("defaults")
	if !d.Enabled || !reflect.DeepEqual(d.Brokers, def.Brokers) || d.RequiredAcks != def.RequiredAcks ||
		d.MaxRetries != def.MaxRetries || d.RetryBackoff != def.RetryBackoff {
		t.Errorf("defaults = %+v", d)
	}

	c := got[1]
	if c.Enabled || len(c.Brokers) != 2 || c.SASLMechanism != kafka.SASLSCRAMSHA256 || c.RequiredAcks != 1 ||
		c.MaxRetries != 7 || c.RetryBackoff != time.Second || c.Selector != "line1" || c.Topic != "custom-topic" {
		t.Errorf("custom = %+v", c)
	}
}
