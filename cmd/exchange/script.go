package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/0x5487/custody-exchange/protocol"
)

var commandTypes = map[string]protocol.CommandType{
	"register_asset": protocol.CmdRegisterAsset,
	"deposit":        protocol.CmdDeposit,
	"withdraw":       protocol.CmdWithdraw,
	"limit_order":    protocol.CmdLimitOrder,
	"market_order":   protocol.CmdMarketOrder,
	"cancel_order":   protocol.CmdCancelOrder,
}

// scriptLine is one JSON line of a command script, e.g.
//
//	{"type":"deposit","payload":{"trader":"0x..a1","symbol":"DAI","amount":"100"}}
//
// Amounts and prices are base units.
type scriptLine struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

// readScript parses every non-empty line of r that does not start with '#'.
func readScript(r io.Reader) ([]*protocol.Command, error) {
	var cmds []*protocol.Command

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var sl scriptLine
		if err := json.Unmarshal(line, &sl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		typ, ok := commandTypes[sl.Type]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown command type %q", lineNo, sl.Type)
		}

		cmds = append(cmds, &protocol.Command{
			Version:   1,
			RequestID: sl.RequestID,
			SeqID:     uint64(len(cmds) + 1),
			Type:      typ,
			Payload:   []byte(sl.Payload),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}
