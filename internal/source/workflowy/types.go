package workflowy

// InitializationData is the subset of the initialization payload the
// pipeline needs: the account join timestamp that completion offsets in
// the tree export are relative to.
type InitializationData struct {
	ProjectTreeData struct {
		MainProjectTreeInfo struct {
			DateJoinedTimestampInSeconds int64 `json:"dateJoinedTimestampInSeconds"`
		} `json:"mainProjectTreeInfo"`
	} `json:"projectTreeData"`
}

// DateJoined returns the account join timestamp in seconds since the
// Unix epoch.
func (d *InitializationData) DateJoined() int64 {
	return d.ProjectTreeData.MainProjectTreeInfo.DateJoinedTimestampInSeconds
}
