package lineage

import "strings"

const (
	// CodeOwnersFileName is the well-known code owners path inside a repository.
	CodeOwnersFileName = ".github/CODEOWNERS"

	codeOwnersCommentPrefixConstant = "#"
	teamSeparatorConstant           = "/"
	loginPrefixConstant             = "@"
)

// ParseCodeOwners extracts individual logins from the first meaningful line of
// a CODEOWNERS document. Teams are skipped; only personal logins can be
// assigned to a pull request. Only the first rule line is consulted, matching
// the convention that the catch-all pattern leads the file.
func ParseCodeOwners(codeOwnersContent string) []string {
	for _, rawLine := range strings.Split(codeOwnersContent, "\n") {
		trimmedLine := strings.TrimSpace(rawLine)
		if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, codeOwnersCommentPrefixConstant) {
			continue
		}

		ruleFields := strings.Fields(trimmedLine)
		if len(ruleFields) < 2 {
			return nil
		}

		owners := make([]string, 0, len(ruleFields)-1)
		for _, ownerField := range ruleFields[1:] {
			if strings.Contains(ownerField, teamSeparatorConstant) {
				continue
			}
			owners = append(owners, strings.TrimPrefix(ownerField, loginPrefixConstant))
		}
		return owners
	}
	return nil
}
