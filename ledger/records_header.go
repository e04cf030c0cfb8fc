package ledger

// header()/withHeader() accessors satisfy recordAccessor for every record
// family. canonicalFields() returns a deterministic byte encoding of the
// family-specific fields (natural key plus any remaining value fields)
// used by the checksum chain in checksum.go.

import "strconv"

func (c Column) header() Header            { return c.Header }
func (c Column) withHeader(h Header) Column { c.Header = h; return c }
func (c Column) canonicalFields() []byte    { return []byte(c.Name) }

func (g ColumnGroup) header() Header             { return g.Header }
func (g ColumnGroup) withHeader(h Header) ColumnGroup { g.Header = h; return g }
func (g ColumnGroup) canonicalFields() []byte    { return []byte(g.Name) }

func (m ColumnGroupColumn) header() Header { return m.Header }
func (m ColumnGroupColumn) withHeader(h Header) ColumnGroupColumn {
	m.Header = h
	return m
}
func (m ColumnGroupColumn) canonicalFields() []byte {
	return []byte(m.Group + "\x00" + m.Column)
}

func (r ColumnGroupAccessRule) header() Header { return r.Header }
func (r ColumnGroupAccessRule) withHeader(h Header) ColumnGroupAccessRule {
	r.Header = h
	return r
}
func (r ColumnGroupAccessRule) canonicalFields() []byte {
	return []byte(r.ColumnGroup + "\x00" + r.UserGroup + "\x00" + string(r.Mode))
}

func (g ParticipantGroup) header() Header { return g.Header }
func (g ParticipantGroup) withHeader(h Header) ParticipantGroup {
	g.Header = h
	return g
}
func (g ParticipantGroup) canonicalFields() []byte { return []byte(g.Name) }

func (m ParticipantGroupParticipant) header() Header { return m.Header }
func (m ParticipantGroupParticipant) withHeader(h Header) ParticipantGroupParticipant {
	m.Header = h
	return m
}
func (m ParticipantGroupParticipant) canonicalFields() []byte {
	return []byte(m.Group + "\x00" + m.LocalPseudonymAtAM)
}

func (r ParticipantGroupAccessRule) header() Header { return r.Header }
func (r ParticipantGroupAccessRule) withHeader(h Header) ParticipantGroupAccessRule {
	r.Header = h
	return r
}
func (r ParticipantGroupAccessRule) canonicalFields() []byte {
	return []byte(r.ParticipantGroup + "\x00" + r.UserGroup + "\x00" + string(r.Mode))
}

func (m ColumnNameMapping) header() Header { return m.Header }
func (m ColumnNameMapping) withHeader(h Header) ColumnNameMapping {
	m.Header = h
	return m
}
func (m ColumnNameMapping) canonicalFields() []byte {
	return []byte(m.Original + "\x00" + m.Mapped)
}

func (u User) header() Header            { return u.Header }
func (u User) withHeader(h Header) User { u.Header = h; return u }
func (u User) canonicalFields() []byte {
	return []byte(strconv.FormatUint(u.InternalID, 10) + "\x00" + u.Identifier + "\x00" +
		strconv.FormatBool(u.IsPrimary) + "\x00" + strconv.FormatBool(u.IsDisplay))
}

func (g UserGroup) header() Header             { return g.Header }
func (g UserGroup) withHeader(h Header) UserGroup { g.Header = h; return g }
func (g UserGroup) canonicalFields() []byte {
	maxAuth := ""
	if g.Properties.MaxAuthValidity != nil {
		maxAuth = g.Properties.MaxAuthValidity.String()
	}
	return []byte(strconv.FormatUint(g.InternalID, 10) + "\x00" + g.Name + "\x00" + maxAuth)
}

func (m UserGroupMember) header() Header { return m.Header }
func (m UserGroupMember) withHeader(h Header) UserGroupMember {
	m.Header = h
	return m
}
func (m UserGroupMember) canonicalFields() []byte {
	return []byte(strconv.FormatUint(m.InternalUserID, 10) + "\x00" + strconv.FormatUint(m.UserGroupID, 10))
}

func (m StructureMetadata) header() Header { return m.Header }
func (m StructureMetadata) withHeader(h Header) StructureMetadata {
	m.Header = h
	return m
}
func (m StructureMetadata) canonicalFields() []byte {
	return []byte(string(m.Subject) + "\x00" + m.SubjectName + "\x00" +
		strconv.FormatUint(m.SubjectID, 10) + "\x00" + m.MetadataGroup + "\x00" +
		m.Subkey + "\x00" + m.Value)
}
