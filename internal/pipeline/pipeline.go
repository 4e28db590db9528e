// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline holds the wire contract between the fetcher, which
// enumerates tables, and the creator, which snapshots them.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// TableMessage identifies one table to snapshot. It is the JSON payload of
// every queue message the fetcher publishes.
type TableMessage struct {
	Project string    `json:"project"`
	Dataset string    `json:"dataset"`
	Table   string    `json:"table"`
	Ts      time.Time `json:"ts"`
}

// Ref returns the project.dataset.table form used in logs and job configs.
func (m TableMessage) Ref() string {
	return fmt.Sprintf("%s.%s.%s", m.Project, m.Dataset, m.Table)
}

func (m TableMessage) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode table message: %w", err)
	}
	return raw, nil
}

func DecodeTableMessage(raw []byte) (TableMessage, error) {
	var m TableMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("failed to decode table message: %w", err)
	}
	if m.Project == "" || m.Dataset == "" || m.Table == "" {
		return m, fmt.Errorf("table message missing project, dataset or table")
	}
	return m, nil
}
