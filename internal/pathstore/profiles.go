package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/docstruct/internal/correction"
)

const profilePrefix = "docstruct/profiles"

// ProfileStore keeps correction profiles as JSON nodes under
// docstruct/profiles/<document-id>.
type ProfileStore struct {
	client *Client
}

// NewProfileStore wraps client as a correction.ProfileStore.
func NewProfileStore(client *Client) *ProfileStore {
	return &ProfileStore{client: client}
}

func profileKey(docID string) string {
	return profilePrefix + "/" + correction.Slugify(docID)
}

func (s *ProfileStore) Save(ctx context.Context, p correction.SavedCorrections) error {
	if correction.Slugify(p.DocumentID) == "" {
		return fmt.Errorf("save profile: empty document id")
	}
	return s.client.PutNode(ctx, profileKey(p.DocumentID), NodeRequest{
		Value:      p,
		MergeMode:  "replace",
		MemoryType: "correction_profile",
		Source:     "docstruct",
	})
}

func (s *ProfileStore) Load(ctx context.Context, docID string) (correction.SavedCorrections, error) {
	var p correction.SavedCorrections
	node, err := s.client.GetNode(ctx, profileKey(docID))
	if errors.Is(err, ErrNotFound) {
		return p, correction.ErrProfileNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(node.Value, &p); err != nil {
		return p, fmt.Errorf("decode profile %s: %w", docID, err)
	}
	return p, nil
}

func (s *ProfileStore) List(ctx context.Context) ([]string, error) {
	nodes, err := s.client.ListChildren(ctx, profilePrefix, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		id := strings.TrimPrefix(n.Key, profilePrefix+"/")
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
