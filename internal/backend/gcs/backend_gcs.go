// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	storage "google.golang.org/api/storage/v1"

	"github.com/grable/snapctlgo/internal/differ"
	"github.com/grable/snapctlgo/internal/state"
	"github.com/grable/snapctlgo/internal/sv"
)

// BackendGCS keeps state as a single object in a versioned GCS bucket.
// Object generations are the state versions.
type BackendGCS struct {
	Ctx         context.Context
	Cmd         *cli.Command
	RootDir     string `json:"-" validate:"dir"`
	EnvOverride string
	Backend     struct {
		Type   string `json:"type" validate:"eq=gcs"`
		Config struct {
			Bucket string `json:"bucket"`
			Key    string `json:"key"`
			Prefix string `json:"prefix"`
		} `json:"config"`
	} `json:"backend"`

	svc *storage.Service
}

type Option func(*BackendGCS) error

func FromRootDir(rootDir string) Option {
	return func(be *BackendGCS) error {
		be.RootDir = rootDir
		raw, err := os.ReadFile(filepath.Join(rootDir, ".snapctl", "backend.json"))
		if err != nil {
			return fmt.Errorf("failed to read backend config: %w", err)
		}
		if err := json.Unmarshal(raw, &be.Backend); err != nil {
			return fmt.Errorf("failed to parse backend config: %w", err)
		}
		return nil
	}
}

func WithEnvOverride(env string) Option {
	return func(be *BackendGCS) error {
		be.EnvOverride = env
		return nil
	}
}

func NewBackendGCS(ctx context.Context, cmd *cli.Command, options ...Option) (*BackendGCS, error) {
	be := &BackendGCS{
		Ctx: ctx,
		Cmd: cmd,
	}
	for _, option := range options {
		if err := option(be); err != nil {
			return nil, err
		}
	}

	if be.Backend.Config.Bucket == "" || be.Backend.Config.Key == "" {
		return nil, fmt.Errorf("gcs backend requires bucket and key")
	}

	svc, err := storage.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	be.svc = svc

	return be, nil
}

// objectKey resolves the full object name, honoring the env override the
// same way the local backend separates environments.
func (be *BackendGCS) objectKey() string {
	return path.Join(be.Backend.Config.Prefix, be.EnvOverride, be.Backend.Config.Key)
}

func (be *BackendGCS) State() ([]byte, error) {
	spec := "CSV~0"
	if be.Cmd != nil {
		if s := be.Cmd.String("sv"); s != "" && s != "0" {
			spec = s
		}
	}
	states, err := be.States(spec)
	if err != nil {
		return nil, err
	}
	return states[0], nil
}

func (be *BackendGCS) States(specs ...string) ([][]byte, error) {
	candidates, err := be.StateVersions()
	if err != nil {
		return nil, err
	}

	versions, err := sv.Finder(candidates, specs...)
	if err != nil {
		return nil, err
	}
	log.Debugf("versions: %v", versions)

	var results [][]byte
	for _, v := range versions {
		// A spec that named a local file bypasses the bucket.
		if v.Source == v.ID {
			if body, err := os.ReadFile(v.Source); err == nil {
				results = append(results, body)
				continue
			}
		}
		body, err := be.stateBody(v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get state: %w", err)
		}
		results = append(results, body)
	}

	return results, nil
}

// stateBody fetches one generation of the state object, read-through the
// disk cache.
func (be *BackendGCS) stateBody(genID string) ([]byte, error) {
	if entry, ok := cacheReader(be, genID); ok {
		return entry, nil
	}

	gen, err := strconv.ParseInt(genID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid generation %q: %w", genID, err)
	}

	resp, err := be.svc.Objects.Get(be.Backend.Config.Bucket, be.objectKey()).
		Generation(gen).Context(be.Ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	if err := cacheWriter(be, genID, data); err != nil {
		log.Errorf("error writing to cache: %v", err)
	}

	return data, nil
}

// StateVersions lists the object's live generations, newest first, with
// serials read from each document body.
func (be *BackendGCS) StateVersions() ([]*state.VersionInfo, error) {
	key := be.objectKey()

	var versions []*state.VersionInfo
	pageToken := ""
	for {
		call := be.svc.Objects.List(be.Backend.Config.Bucket).
			Prefix(key).Versions(true).Context(be.Ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list object versions: %w", err)
		}

		for _, obj := range res.Items {
			// Prefix matching also returns lock files and friends.
			if obj.Name != key {
				log.Debugf("throwing away %s", obj.Name)
				continue
			}
			if obj.TimeDeleted != "" {
				continue
			}

			genID := strconv.FormatInt(obj.Generation, 10)

			body, err := be.stateBody(genID)
			if err != nil {
				log.Errorf("%v", err)
				continue
			}

			doc, err := state.Decode(body)
			if err != nil {
				log.Debugf("skipping unparseable generation %s: %v", genID, err)
				continue
			}

			created, _ := time.Parse(time.RFC3339, obj.Updated)
			versions = append(versions, &state.VersionInfo{
				ID:        genID,
				Serial:    doc.Serial,
				CreatedAt: created,
				Source:    fmt.Sprintf("gs://%s/%s#%s", be.Backend.Config.Bucket, key, genID),
			})
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})

	if be.Cmd != nil {
		if limit := int(be.Cmd.Int("limit")); limit > 0 && len(versions) > limit {
			versions = versions[:limit]
		}
	}

	return versions, nil
}

// Push writes doc as a new generation of the state object.
func (be *BackendGCS) Push(doc []byte) error {
	obj := &storage.Object{Name: be.objectKey()}
	_, err := be.svc.Objects.Insert(be.Backend.Config.Bucket, obj).
		Media(bytes.NewReader(doc)).Context(be.Ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to push state: %w", err)
	}
	return nil
}

// DiffStates implements backend.SelfDiffer.
func (be *BackendGCS) DiffStates(ctx context.Context, cmd *cli.Command) ([][]byte, error) {
	svSpecs := []string{"CSV~1", "CSV~0"}

	diffArgs := differ.ParseDiffArgs(ctx, cmd)
	switch len(diffArgs) {
	case 0:
		// No args, so diff the last two generations.
	case 1:
		svSpecs[0] = diffArgs[0]
	case 2:
		svSpecs = diffArgs
	}

	return be.States(svSpecs[0], svSpecs[1])
}

func (be *BackendGCS) String() string {
	return fmt.Sprintf("gcs gs://%s/%s", be.Backend.Config.Bucket, be.objectKey())
}

func (be *BackendGCS) Type() (string, error) {
	return be.Backend.Type, nil
}
