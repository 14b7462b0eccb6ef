package objectdb

import (
	"bytes"
	"io"

	"github.com/prollytree-go/prollytree/codec"
	"github.com/prollytree-go/prollytree/errs"
)

const commitFormatVersion = 1

// Commit records a snapshot of the tree at a point in time: its root blob,
// zero or more parents (zero for the initial commit, one for a linear
// history, two or more for a merge), and the usual author/committer/message
// metadata (spec.md §4.6/§6, grounded on original_source/src/git/types.rs's
// CommitInfo/CommitDetails).
type Commit struct {
	Root      ObjectID
	Parents   []ObjectID
	Author    string
	Committer string
	Message   string
	Timestamp int64
}

func (c *Commit) Write(w io.Writer) error {
	if err := codec.WriteByte(w, commitFormatVersion); err != nil {
		return err
	}
	if err := codec.WriteBytes(w, c.Root[:]); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(len(c.Parents))); err != nil {
		return err
	}
	for _, p := range c.Parents {
		if err := codec.WriteBytes(w, p[:]); err != nil {
			return err
		}
	}
	if err := codec.WriteBytes(w, []byte(c.Author)); err != nil {
		return err
	}
	if err := codec.WriteBytes(w, []byte(c.Committer)); err != nil {
		return err
	}
	if err := codec.WriteBytes(w, []byte(c.Message)); err != nil {
		return err
	}
	return codec.WriteUint64(w, uint64(c.Timestamp))
}

func (c *Commit) Read(r io.Reader) error {
	version, err := codec.ReadByte(r)
	if err != nil {
		return err
	}
	if version != commitFormatVersion {
		return errs.Corruptionf("objectdb: unsupported commit format version %d", version)
	}
	root, err := codec.ReadBytes(r)
	if err != nil {
		return err
	}
	if len(root) != 20 {
		return errs.Corruptionf("objectdb: malformed commit root id")
	}
	copy(c.Root[:], root)

	count, err := codec.ReadUint32(r)
	if err != nil {
		return err
	}
	c.Parents = make([]ObjectID, count)
	for i := range c.Parents {
		raw, err := codec.ReadBytes(r)
		if err != nil {
			return err
		}
		if len(raw) != 20 {
			return errs.Corruptionf("objectdb: malformed parent id at %d", i)
		}
		copy(c.Parents[i][:], raw)
	}

	author, err := codec.ReadBytes(r)
	if err != nil {
		return err
	}
	c.Author = string(author)
	committer, err := codec.ReadBytes(r)
	if err != nil {
		return err
	}
	c.Committer = string(committer)
	message, err := codec.ReadBytes(r)
	if err != nil {
		return err
	}
	c.Message = string(message)
	ts, err := codec.ReadUint64(r)
	if err != nil {
		return err
	}
	c.Timestamp = int64(ts)
	return nil
}

// Bytes returns the canonical serialisation.
func (c *Commit) Bytes() []byte {
	return codec.MustBytes(c)
}

// DecodeCommit parses bytes produced by Commit.Bytes.
func DecodeCommit(data []byte) (*Commit, error) {
	c := &Commit{}
	if err := c.Read(bytes.NewReader(data)); err != nil {
		return nil, errs.Corruptionf("objectdb: decode commit: %v", err)
	}
	return c, nil
}
