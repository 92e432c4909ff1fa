// Package gitignore matches paths against gitignore-syntax patterns
// (https://git-scm.com/docs/gitignore), the exclusion language the codebase
// index (C2) and file watcher (C8) share so a walk of the project tree and a
// live watch of it agree on what never becomes a file, a chunk, or a
// resync event.
//
// Supported syntax:
//   - Basic and wildcard patterns (*.log, temp/, *, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested .gitignore files via AddPatternWithBase/AddFromFile
//
// Usage (C2's loadIgnoreRules and C8's loadGitignore load the root
// .gitignore with the same empty-base AddFromFile call; neither adds the
// .git/ pattern, since both skip .git directories on their own):
//
//	m := gitignore.New()
//	m.AddPattern(".git/")
//	if err := m.AddFromFile(filepath.Join(root, ".gitignore"), ""); err != nil && !os.IsNotExist(err) {
//	    return nil, err
//	}
//
//	if m.Match(relPath, isDir) {
//	    // skip: never indexed, never watched
//	}
package gitignore
