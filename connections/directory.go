// Package connections remembers which groups a user manages from private chat and which one is active.
package connections

import (
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/federated"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

var ErrDuplicate = errors.New("connection record exists")

// Backend is the connection storage of one database instance
type Backend interface {
	// Get returns nil if the user has no record
	Get(userID int64) (*models.ConnectionEntry, error)
	Insert(entry models.ConnectionEntry) error
	// PushGroup appends the group and makes it active
	PushGroup(userID int64, groupID int64) error
	PullGroup(userID int64, groupID int64) error
	// SetActive reports whether a record matched, nil clears the active group
	SetActive(userID int64, groupID *int64) (bool, error)
}

type Directory struct {
	pair federated.Pair[Backend]
}

func NewDirectory(primary Backend, secondary Backend, hasSecondary bool, r *router.Router) *Directory {
	return &Directory{pair: federated.NewPair(primary, secondary, hasSecondary, r)}
}

// record finds the user's record, primary first
func (d *Directory) record(userID int64, operation string) (*models.ConnectionEntry, federated.Member[Backend], bool, federated.Warnings) {
	entry, member, found, warnings := federated.Probe(d.pair.Lookup(), func(backend Backend) (*models.ConnectionEntry, bool, error) {
		entry, err := backend.Get(userID)
		return entry, entry != nil, err
	})
	warnings.Log("connections", operation)
	return entry, member, found, warnings
}

// Connect adds groupID to the user's groups and makes it active.
// It returns false if the user is already connected to the group.
func (d *Directory) Connect(userID int64, groupID int64) (bool, error) {
	entry, member, found, warnings := d.record(userID, "connect")
	if found {
		if entry.HasGroup(groupID) {
			return false, nil
		}
		if err := member.Backend.PushGroup(userID, groupID); err != nil {
			d.logError(member.Instance, "error updating connection", err)
			return false, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
		}
		return true, nil
	}
	if warnings.Degraded() {
		// the record may live on the failing instance
		return false, warnings.Err()
	}

	writer := d.pair.Writer()
	err := writer.Backend.Insert(models.ConnectionEntry{
		UserID:      userID,
		Groups:      []models.ConnectionEntryGroup{{GroupID: groupID}},
		ActiveGroup: &groupID,
	})
	if errors.Cause(err) == ErrDuplicate {
		return false, nil
	}
	if err != nil {
		d.logError(writer.Instance, "error adding connection", err)
		return false, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
	}
	return true, nil
}

// SetActive makes groupID the active group, the user must be connected to it
func (d *Directory) SetActive(userID int64, groupID int64) (bool, error) {
	entry, member, found, warnings := d.record(userID, "activate")
	if !found {
		return false, warnings.Err()
	}
	if !entry.HasGroup(groupID) {
		return false, nil
	}
	return d.setActive(member, userID, &groupID)
}

// ClearActive leaves the user without an active group
func (d *Directory) ClearActive(userID int64) (bool, error) {
	_, member, found, warnings := federated.Probe(d.pair.Lookup(), func(backend Backend) (struct{}, bool, error) {
		matched, err := backend.SetActive(userID, nil)
		return struct{}{}, matched, err
	})
	warnings.Log("connections", "deactivate")
	if !found {
		return false, warnings.Err()
	}
	cache.GetLogger().WithField("module", "connections").WithField("instance", member.Instance.String()).
		Debugf("cleared active group of %d", userID)
	return true, nil
}

// Disconnect removes groupID from the user's groups. If it was active the most recently
// joined remaining group becomes active, or none if no group is left. The record itself stays.
func (d *Directory) Disconnect(userID int64, groupID int64) (bool, error) {
	entry, member, found, warnings := d.record(userID, "disconnect")
	if !found {
		return false, warnings.Err()
	}
	if !entry.HasGroup(groupID) {
		return false, nil
	}

	if err := member.Backend.PullGroup(userID, groupID); err != nil {
		d.logError(member.Instance, "error deleting connection", err)
		return false, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
	}

	if entry.ActiveGroup == nil || *entry.ActiveGroup != groupID {
		return true, nil
	}
	remaining := remove(entry.GroupIDs(), groupID)
	var next *int64
	if len(remaining) > 0 {
		next = &remaining[len(remaining)-1]
	}
	// not atomic with the pull, a failure here leaves the active group stale
	if _, err := d.setActive(member, userID, next); err != nil {
		return true, err
	}
	return true, nil
}

// GetActive returns the active group of the user, if any
func (d *Directory) GetActive(userID int64) (int64, bool) {
	entry, _, found, _ := d.record(userID, "active")
	if !found || entry.ActiveGroup == nil {
		return 0, false
	}
	return *entry.ActiveGroup, true
}

// ListGroups returns the user's groups in join order, false if the user has no record
func (d *Directory) ListGroups(userID int64) ([]int64, bool) {
	entry, _, found, _ := d.record(userID, "list")
	if !found {
		return nil, false
	}
	return entry.GroupIDs(), true
}

func (d *Directory) IsActive(userID int64, groupID int64) bool {
	active, ok := d.GetActive(userID)
	return ok && active == groupID
}

func (d *Directory) setActive(member federated.Member[Backend], userID int64, groupID *int64) (bool, error) {
	matched, err := member.Backend.SetActive(userID, groupID)
	if err != nil {
		d.logError(member.Instance, "error setting active group", err)
		return false, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
	}
	return matched, nil
}

func (d *Directory) logError(instance models.Instance, message string, err error) {
	cache.GetLogger().WithField("module", "connections").WithField("instance", instance.String()).
		Errorf("%s: %s", message, err.Error())
}

func remove(ids []int64, id int64) []int64 {
	kept := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			kept = append(kept, candidate)
		}
	}
	return kept
}
