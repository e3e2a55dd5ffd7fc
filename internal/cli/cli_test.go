/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/SmartBFT-Go/staticraffle/example/mock"
	"github.com/SmartBFT-Go/staticraffle/internal/config"
	"github.com/SmartBFT-Go/staticraffle/internal/round"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	"github.com/SmartBFT-Go/staticraffle/internal/store"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const configTemplate = `winner_count: %d
trigger: deployer
roster: ["0xaa", "0xbb", "0xcc", "0xdd", "0xee"]
provider:
  principal: vrf-coordinator
  key_hash: "0x0102"
  request_confirmations: 2
  block_interval: 1ms
  redeliver: 2
selection:
  strategy: %s
store:
  path: %s
log:
  level: error
`

// writeConfig writes a configuration into dir, whose rounds are all stored in dir/raffle.db
func writeConfig(t *testing.T, dir string, winnerCount int, strategy string) (string, string) {
	dbPath := filepath.Join(dir, "raffle.db")
	path := filepath.Join(dir, fmt.Sprintf("raffle-%d-%s.yaml", winnerCount, strategy))
	content := fmt.Sprintf(configTemplate, winnerCount, strategy, dbPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "draw", "select", "status"} {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	_, err := execute(t, "select", "--format", "yaml", "-n", "3", "1")
	assert.EqualError(t, err, `invalid format "yaml": must be one of [text json]`)
}

func TestSelect(t *testing.T) {
	out, err := execute(t, "select", "-n", "4", "5", "0x101")
	require.NoError(t, err)
	assert.Equal(t, "1 3\n", out)

	out, err = execute(t, "select", "--format", "json", "-n", "11", "--strategy", "rehash", "3", "14", "25")
	require.NoError(t, err)
	res := SelectResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "rehash", res.Strategy)
	require.Len(t, res.Indices, 3)
	assert.Equal(t, 3, res.Indices[0])

	_, err = execute(t, "select", "-n", "2", "1", "2", "3")
	assert.ErrorIs(t, err, raffle.ErrInvalidSelection)

	_, err = execute(t, "select", "-n", "4", "--strategy", "lottery", "1")
	assert.EqualError(t, err, `unknown selection strategy "lottery"`)
}

func TestDraw(t *testing.T) {
	for _, strategy := range []string{"swap", "rehash"} {
		t.Run(strategy, func(t *testing.T) {
			path, _ := writeConfig(t, t.TempDir(), 3, strategy)

			out, err := execute(t, "draw", "-c", path, "--format", "json")
			require.NoError(t, err)

			view := RoundView{}
			require.NoError(t, json.Unmarshal([]byte(out), &view))
			assert.Equal(t, "fulfilled", view.State)
			assert.NotEmpty(t, view.RequestID)
			assert.Len(t, view.Winners, 3)
			assert.Len(t, view.WinnerIndices, 3)
			require.NotNil(t, view.Verified)
			assert.True(t, *view.Verified)
			assert.NotEmpty(t, view.ProofSignature)
		})
	}
}

func TestStatus(t *testing.T) {
	path, dbPath := writeConfig(t, t.TempDir(), 2, "swap")

	out, err := execute(t, "status", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "state:   created\n", out)

	file, err := config.Load(path)
	require.NoError(t, err)
	raffleConfig, err := file.Raffle()
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	r, err := round.New(raffleConfig, &mock.Provider{}, selection.Select, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, r.Restore(st))
	require.NoError(t, r.Start(context.Background(), "deployer"))
	require.NoError(t, st.Close())

	out, err = execute(t, "status", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "state:   request-sent\nrequest: request-1\n", out)

	st, err = store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, r.Restore(st))
	require.NoError(t, r.Fulfill(context.Background(), "vrf-coordinator", "request-1", []*raffle.Word{uint256.NewInt(7), uint256.NewInt(1)}))
	require.NoError(t, st.Close())

	out, err = execute(t, "status", "-c", path, "--format", "json")
	require.NoError(t, err)
	view := RoundView{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "fulfilled", view.State)
	assert.Equal(t, []int{2, 0}, view.WinnerIndices)
	assert.Equal(t, []string{"0xcc", "0xaa"}, view.Winners)
}

func TestStatusConfigMismatch(t *testing.T) {
	path, dbPath := writeConfig(t, t.TempDir(), 2, "swap")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Save([]byte("garbage")))
	require.NoError(t, st.Close())

	_, err = execute(t, "status", "-c", path)
	assert.Error(t, err)

	dir := t.TempDir()
	path, dbPath = writeConfig(t, dir, 2, "swap")
	otherPath, _ := writeConfig(t, dir, 3, "swap")
	file, err := config.Load(otherPath)
	require.NoError(t, err)
	raffleConfig, err := file.Raffle()
	require.NoError(t, err)

	st, err = store.Open(dbPath)
	require.NoError(t, err)
	r, err := round.New(raffleConfig, &mock.Provider{}, selection.Select, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, r.Restore(st))
	require.NoError(t, st.Close())

	_, err = execute(t, "status", "-c", path)
	assert.ErrorIs(t, err, raffle.ErrSnapshotMismatch)
}
