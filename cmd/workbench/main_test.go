// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitLogger(t *testing.T) {
	_, closer, err := initLogger(false, "")
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
	if closer != nil {
		_ = closer.Close()
	}

	_, closer, err = initLogger(true, "")
	if err != nil {
		t.Fatalf("initLogger with debug failed: %v", err)
	}
	if closer != nil {
		_ = closer.Close()
	}
}

func TestInitLoggerWithFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger, closer, err := initLogger(true, logFile)
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}

	logger.Info().Msg("test entry")
	if closer != nil {
		_ = closer.Close()
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log entry in file")
	}
}

func TestInitLoggerBadPath(t *testing.T) {
	_, _, err := initLogger(false, filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	if err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}
