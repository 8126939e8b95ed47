// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	ConfigLoadFailedId Id = iota + 1
	PackNotFoundId
	ValidationFailedId
	ManifestInvalidId
	DependencyUnboundId
	ServerControlFailedId
	PublishFailedId
	CacheClearFailedId
	HostNotSupportedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Renderer interface {
		Render(in string, stylePath string) (string, error)
	}

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Check the error above for the offending field and line
- Print the configuration that would be used:
~~~
$ packdeploy config show
~~~
- Remove the file to fall back to the built-in defaults

## Example packdeploy.cue:
~~~cue
world_dir: "worlds/Super Quester World"
packs: {
  behavior: source: "packs/QuestSystemBP"
  resource: source: "packs/QuestSystemRP"
}
server: settle_delay: "3s"
~~~`,
	}

	packNotFoundIssue = &Issue{
		id: PackNotFoundId,
		mdMsg: `
# Pack directory not found!

One of the pack source directories does not exist or has no manifest.json.

## Things you can try:
- Run from the project root, or pass it explicitly:
~~~
$ packdeploy --project /path/to/project deploy
~~~
- Check packs.behavior.source and packs.resource.source in packdeploy.cue`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Pack validation failed!

At least one JSON file is malformed. Nothing was modified: versions, uuids,
published copies and caches are exactly as they were.

## Things you can try:
- Fix every file listed above (line and column are shown when known)
- Re-run validation on its own until it passes:
~~~
$ packdeploy validate
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid manifest!

A manifest.json parses as JSON but is missing members the deployment rewrites.

## Requirements:
- header.uuid must be a uuid string
- header.version and every modules[].version must be [major, minor, patch]
- every dependency needs a uuid or a module_name`,
	}

	dependencyUnboundIssue = &Issue{
		id: DependencyUnboundId,
		mdMsg: `
# Resource pack dependency not updated!

The resource pack has no single dependency entry that references the behavior
pack, so it was left untouched. The host may load the packs without pairing them.

## Things you can try:
- Add the entry to the resource pack manifest:
~~~json
"dependencies": [{"uuid": "<behavior pack header uuid>", "version": [1, 0, 0]}]
~~~
- Check the binding with:
~~~
$ packdeploy status
~~~`,
	}

	serverControlFailedIssue = &Issue{
		id: ServerControlFailedId,
		mdMsg: `
# Could not control the server process!

The dedicated server is running but could not be queried or stopped.

## Things you can try:
- Stop the server manually and re-run the deployment
- Run the terminal as the same user that started the server
- Check server.process_name in packdeploy.cue`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# Publishing failed!

The packs were rotated but could not be copied into the world. Completed stages
are not rolled back, so the next run bumps the versions again.

## Things you can try:
- Make sure no program holds files open in the world directory
- Check that world_dir points at the right world`,
	}

	cacheClearFailedIssue = &Issue{
		id: CacheClearFailedId,
		mdMsg: `
# Some cache folders could not be cleared!

The deployment finished, but the client may still load a stale copy.

## Things you can try:
- Close the game client and re-run the deployment
- Delete the listed folders by hand`,
	}

	hostNotSupportedIssue = &Issue{
		id: HostNotSupportedId,
		mdMsg: `
# Host not supported!

Server process control and cache clearing are only available on Windows.
On this system those steps are skipped; everything else runs normally.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		packNotFoundIssue.Id():        packNotFoundIssue,
		validationFailedIssue.Id():    validationFailedIssue,
		manifestInvalidIssue.Id():     manifestInvalidIssue,
		dependencyUnboundIssue.Id():   dependencyUnboundIssue,
		serverControlFailedIssue.Id(): serverControlFailedIssue,
		publishFailedIssue.Id():       publishFailedIssue,
		cacheClearFailedIssue.Id():    cacheClearFailedIssue,
		hostNotSupportedIssue.Id():    hostNotSupportedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
