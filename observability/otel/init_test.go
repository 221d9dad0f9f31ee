package otel

import (
	"context"
	"reflect"
	"testing"
)

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatal("blank service name accepted")
	}
}

func TestInitWithoutExportersIsShutdownSafe(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "amanad"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "authorization=Bearer abc", map[string]string{"authorization": "Bearer abc"}},
		{"multiple with spaces", " a=1 , b = 2 ", map[string]string{"a": "1", "b": "2"}},
		{"malformed pairs skipped", "a=1,no-equals,=blankkey,b=2", map[string]string{"a": "1", "b": "2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseHeaders(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}
