package ipc

import (
	"bytes"
	"testing"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := InitReport{Success: false, FailureCause: "controller host \"x\" does not exist"}

	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var got InitReport
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got != want {
		t.Fatalf("ReadMessage() = %+v, want %+v", got, want)
	}
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // length prefix larger than MaxMessageSize

	var got InitReport
	if err := ReadMessage(&buf, &got); err == nil {
		t.Fatal("ReadMessage() error = nil, want error for oversized frame")
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x10}) // claims 16 bytes but provides none

	var got InitReport
	if err := ReadMessage(&buf, &got); err == nil {
		t.Fatal("ReadMessage() error = nil, want error for truncated payload")
	}
}
