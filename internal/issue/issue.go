// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a guidance document.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	RegistryUnreachableId
	RateLimitedId
	ChecksumMismatchId
	StoreNotWritableId
	PythonMissingId
	ServerFailedId
)

type (
	// MarkdownMsg is guidance text rendered with glamour.
	MarkdownMsg string

	// HttpLink is a documentation URL appended to the rendered guidance.
	HttpLink string

	// Issue is a guidance document for a class of failures.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the issue's documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the guidance for a terminal using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Could not load the configuration

The configuration file is not valid CUE or does not match the schema.

## Things you can try
- Check the field named in the error above
- Print the effective configuration:
~~~
$ ntcomp config show
~~~
- Start over from a fresh file:
~~~
$ ntcomp config init --force
~~~`,
	}

	registryUnreachableIssue = &Issue{
		id: RegistryUnreachableId,
		mdMsg: `
# Could not reach the release registry

The latest release could not be fetched, so no components were checked.
Installed components are left untouched.

## Things you can try
- Check your network connection and proxy settings (HTTPS_PROXY)
- Verify ` + "`registry.owner`" + ` and ` + "`registry.repo`" + ` in your configuration
- Retry later; the application still starts with the installed components`,
		docLinks: []HttpLink{"https://docs.github.com/en/rest/releases/releases#get-the-latest-release"},
	}

	rateLimitedIssue = &Issue{
		id: RateLimitedId,
		mdMsg: `
# Release registry rate limit reached

Anonymous requests to the GitHub API are limited per IP address.

## Things you can try
- Wait until the reset time shown above
- Provide a token through the environment variable named by ` + "`registry.token_env`" + `:
~~~
$ export GITHUB_TOKEN=<token>
$ ntcomp update
~~~`,
		docLinks: []HttpLink{"https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Downloaded archive failed verification

The SHA-256 digest of the downloaded archive does not match the digest in its
asset name. The file was discarded and nothing was installed.

## Things you can try
- Run the update again; a truncated transfer is the usual cause
- If the mismatch persists, the release asset itself is damaged. Report it to the publisher
- Re-hash what is already installed:
~~~
$ ntcomp verify
~~~`,
	}

	storeNotWritableIssue = &Issue{
		id: StoreNotWritableId,
		mdMsg: `
# Component store is not writable

Archives and extracted files could not be written to the components directory.

## Things you can try
- Check ownership and permissions of the directory shown above
- Free some disk space
- Point ` + "`components_dir`" + ` (or ` + "`NTCOMP_COMPONENTS_DIR`" + `) at a writable location`,
	}

	pythonMissingIssue = &Issue{
		id: PythonMissingId,
		mdMsg: `
# Python environment is not installed

The server cannot start without the ` + "`python_env`" + ` component.

## Things you can try
- Install the components:
~~~
$ ntcomp update
~~~
- Point ` + "`server.python_env_dir`" + ` at an existing environment`,
	}

	serverFailedIssue = &Issue{
		id: ServerFailedId,
		mdMsg: `
# Server exited during startup

The backend process stopped before it reported that startup was complete.

## Things you can try
- Re-run with ` + "`--verbose`" + ` to see every output line
- Check that the installed components verify cleanly:
~~~
$ ntcomp verify
~~~
- Review ` + "`server.command`" + ` and ` + "`server.env`" + ` in your configuration`,
	}

	issues = []*Issue{
		configLoadFailedIssue,
		registryUnreachableIssue,
		rateLimitedIssue,
		checksumMismatchIssue,
		storeNotWritableIssue,
		pythonMissingIssue,
		serverFailedIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	return slices.Clone(issues)
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	idx := slices.IndexFunc(issues, func(i *Issue) bool { return i.id == id })
	if idx < 0 {
		return nil
	}
	return issues[idx]
}
