package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/audio"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/mattn/go-shellwords"
)

// execBackend runs an external CPU-bound recognizer once per chunk.
type execBackend struct {
	cmd []string
	cfg config.RecognitionConfig
	mu  sync.Mutex
}

type execResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func NewExecBackend(cfg config.RecognitionConfig) (Backend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse recognition command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognition command is empty")
	}
	return &execBackend{cmd: args, cfg: cfg}, nil
}

func (b *execBackend) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "rttd_chunk_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.WriteSamplesWAV(file, samples, sampleRate); err != nil {
		return Result{}, err
	}

	cmdArgs := append([]string{}, b.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if b.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", b.cfg.ModelPath)
	}
	if language != "" {
		cmdArgs = append(cmdArgs, "--language", language)
	}
	if b.cfg.Threads > 0 {
		cmdArgs = append(cmdArgs, "--threads", strconv.Itoa(b.cfg.Threads))
	}

	command := exec.CommandContext(ctx, b.cmd[0], cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("recognition command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode recognition response: %w", err)
	}
	if resp.Language == "" {
		resp.Language = language
	}
	return Result{Text: resp.Text, Language: resp.Language}, nil
}
