package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// maxLineBytes bounds one JSON-RPC message on stdio. Pairwise datasets are
// small, but CSV payloads ride inside tool arguments, so allow generous
// lines.
const maxLineBytes = 10 * 1024 * 1024

// ServeStdio reads newline-delimited JSON-RPC messages from r and writes
// responses to w until EOF or context cancellation. All logging goes to
// the zap logger (stderr); stdout carries nothing but responses.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("malformed JSON-RPC message", zap.Error(err))
			if err := writeMessage(w, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &JSONRPCError{Code: codeParseError, Message: "Parse error: " + err.Error()},
			}); err != nil {
				return err
			}
			continue
		}

		s.logger.Debug("request received", zap.String("method", req.Method))

		resp := s.HandleRequest(ctx, req)
		if resp == nil {
			continue
		}
		if err := writeMessage(w, resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio read failed: %w", err)
	}
	return nil
}

func writeMessage(w io.Writer, resp *JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
