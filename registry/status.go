package registry

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/955Gmy/libnetconf/notification"
)

// Status returns the stream-status XML document: every registered stream
// with its name, description, replay support, and, when replay is enabled,
// the creation time of the replay log.
func (r *Registry) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// refreshStatusLocked rebuilds the serialized status snapshot.
// Caller holds r.mu.
func (r *Registry) refreshStatusLocked() {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("netconf")
	root.CreateAttr("xmlns", notification.NamespaceStreams)
	streams := root.CreateElement("streams")

	for _, name := range r.order {
		s := r.streams[name]
		el := streams.CreateElement("stream")
		el.CreateElement("name").SetText(s.Name)
		el.CreateElement("description").SetText(s.Desc)
		el.CreateElement("replaySupport").SetText(strconv.FormatBool(s.Replay))
		if s.Replay {
			el.CreateElement("replayLogCreationTime").SetText(notification.FormatTime(s.Created))
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		r.logger.Error("serializing stream status failed", "error", err)
		return
	}
	r.status = out
}
