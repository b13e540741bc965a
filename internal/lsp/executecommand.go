package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go.lsp.dev/protocol"
)

func (s *Server) handleExecuteCommand(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.ExecuteCommandParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	switch p.Command {
	case cmdBuild, cmdTest, cmdRun:
		label, ok := commandTarget(p.Arguments)
		if !ok {
			return nil, &ResponseError{
				Code:    CodeInvalidParams,
				Message: fmt.Sprintf("%s: missing target argument", p.Command),
			}
		}
		sub := strings.TrimPrefix(p.Command, "bazel.")
		s.runBazel(ctx, sub, label)
		return nil, nil

	default:
		s.logMessage(ctx, protocol.MessageTypeError, fmt.Sprintf("Unknown command: %s", p.Command))
		return nil, nil
	}
}

// commandTarget pulls the target label out of code lens arguments,
// which arrive as [{"target": "//pkg:name"}].
func commandTarget(args []interface{}) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	obj, ok := args[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	label, ok := obj["target"].(string)
	return label, ok && label != ""
}

// runBazel executes a bazel subcommand, streaming its output to the
// client log as it arrives. Runs on the request goroutine; the read
// loop is not blocked by a long build.
func (s *Server) runBazel(ctx context.Context, subcommand, label string) {
	s.logMessage(ctx, protocol.MessageTypeInfo,
		fmt.Sprintf("Executing: bazel %s %s (in %s)", subcommand, label, s.runner.Dir))

	err := s.runner.Run(ctx, subcommand, label, &clientLog{ctx: ctx, s: s})
	if err != nil {
		log.Printf("bazel %s %s: %v", subcommand, label, err)
		s.logMessage(ctx, protocol.MessageTypeError,
			fmt.Sprintf("bazel %s failed for %s: %v", subcommand, label, err))
		return
	}
	s.logMessage(ctx, protocol.MessageTypeInfo,
		fmt.Sprintf("bazel %s succeeded for %s", subcommand, label))
}

// clientLog adapts the client log channel to runner.Output. Bazel
// writes progress to stderr, which is not an error by itself, but the
// warning level keeps it visible.
type clientLog struct {
	ctx context.Context
	s   *Server
}

func (c *clientLog) Stdout(line string) {
	c.s.logMessage(c.ctx, protocol.MessageTypeInfo, line)
}

func (c *clientLog) Stderr(line string) {
	c.s.logMessage(c.ctx, protocol.MessageTypeWarning, line)
}
