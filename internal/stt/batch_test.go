package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

func TestBatchClient_Transcribe(t *testing.T) {
	var (
		mu         sync.Mutex
		gotName    string
		gotType    string
		gotSamples []int
		gotRate    uint32
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe/" {
			http.Error(w, "unexpected route", http.StatusNotFound)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		dec := wav.NewDecoder(file)
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotSamples = buf.Data
		gotRate = dec.SampleRate
		mu.Unlock()

		w.Write([]byte("  hello from batch \n"))
	}))
	defer server.Close()

	client, err := NewBatchClient(server.URL, 5*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBatchClient failed: %v", err)
	}

	samples := []float32{0, 0.5, -0.5, 1.0, -1.5}
	text, err := client.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello from batch" {
		t.Errorf("Expected trimmed text 'hello from batch', got %q", text)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotName != "audio.wav" {
		t.Errorf("Expected filename audio.wav, got %q", gotName)
	}
	if gotType != "audio/wav" {
		t.Errorf("Expected content type audio/wav, got %q", gotType)
	}
	if gotRate != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", gotRate)
	}
	want := []int{0, 16383, -16383, 32767, -32768}
	if len(gotSamples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(gotSamples))
	}
	for i := range want {
		if gotSamples[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], gotSamples[i])
		}
	}
}

func TestBatchClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewBatchClient(server.URL, 5*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBatchClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), []float32{0.1, 0.2})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if text != "" {
		t.Errorf("Expected no text on error, got %q", text)
	}
}

func TestBatchClient_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(" \n"))
	}))
	defer server.Close()

	client, _ := NewBatchClient(server.URL, 5*time.Second, zerolog.Nop())
	text, err := client.Transcribe(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Expected no error for empty body, got %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty text, got %q", text)
	}
}

func TestBatchClient_RemovesTempFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "justspeak-*.wav"))

	client, _ := NewBatchClient(server.URL, 5*time.Second, zerolog.Nop())
	if _, err := client.Transcribe(context.Background(), []float32{0.1, 0.2}); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "justspeak-*.wav"))
	if len(after) > len(before) {
		t.Errorf("Expected temp WAV to be removed, found %d new files", len(after)-len(before))
	}
}
