package docker

import (
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
)

func TestToStatusFormatsPorts(t *testing.T) {
	status := toStatus(types.Container{
		ID:    "abc",
		Names: []string{"/postboard-db"},
		State: "running",
		Ports: []types.Port{
			{PrivatePort: 27017, PublicPort: 27017, Type: "tcp"},
			{PrivatePort: 9000, Type: "udp"},
		},
	})
	if status.Name != "postboard-db" {
		t.Fatalf("expected leading slash stripped, got %q", status.Name)
	}
	if strings.Join(status.Ports, ",") != "0.0.0.0:27017->27017/tcp,9000/udp" {
		t.Fatalf("unexpected ports %v", status.Ports)
	}
}

func TestStreamMessagesSurfacesErrors(t *testing.T) {
	var lines []string
	input := `{"stream":"Step 1/2 : FROM golang\n"}{"status":"Downloading","id":"abc","progressDetail":{"current":1,"total":2}}`
	if err := streamMessages(strings.NewReader(input), func(s string) { lines = append(lines, s) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "Step 1/2 : FROM golang" || lines[1] != "abc Downloading 1/2" {
		t.Fatalf("unexpected lines %q", lines)
	}

	err := streamMessages(strings.NewReader(`{"errorDetail":{"message":"no space left"}}`), nil)
	if err == nil || err.Error() != "no space left" {
		t.Fatalf("expected build error, got %v", err)
	}
}
