// Package names generates memorable fork names so listings read better
// than bare IDs.
package names

import "math/rand"

var adjectives = []string{
	"swift", "quiet", "bold", "clever", "eager", "gentle", "keen",
	"lively", "nimble", "patient", "quick", "sharp", "steady", "bright",
	"calm", "daring", "fearless", "happy", "jolly", "merry", "proud",
	"rapid", "silent", "wise", "zesty", "brave", "curious", "dashing",
}

var animals = []string{
	"falcon", "otter", "badger", "lynx", "heron", "marten", "osprey",
	"weasel", "raven", "swift", "stoat", "kestrel", "puffin", "shrew",
	"vole", "wren", "finch", "tern", "plover", "siskin", "dipper",
	"merlin", "hare", "fox", "owl", "crane", "jay", "lark",
}

// Random returns a name like "swift-falcon".
func Random() string {
	return adjectives[rand.Intn(len(adjectives))] + "-" + animals[rand.Intn(len(animals))]
}
