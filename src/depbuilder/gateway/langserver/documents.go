package langserver

import (
	"context"
	"sync"

	"go.lsp.dev/protocol"
)

// Document is a file to make visible to the server before querying it.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID string
	// Hash identifies the content. A changed hash reopens the document.
	Hash string
	Text string
}

type openDocument struct {
	hash    string
	version int32
}

type documents struct {
	mu   sync.Mutex
	open map[protocol.DocumentURI]openDocument
}

func (d *documents) get(u protocol.DocumentURI) (openDocument, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.open[u]
	return doc, ok
}

func (d *documents) set(u protocol.DocumentURI, doc openDocument) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open[u] = doc
}

func (d *documents) remove(u protocol.DocumentURI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, u)
}

// SyncDocument opens doc on the server, or closes and reopens it when its content changed
// since it was last opened on this connection.
func (c *Conn) SyncDocument(ctx context.Context, doc Document) error {
	current, ok := c.docs.get(doc.URI)
	if ok && current.hash == doc.Hash {
		return nil
	}

	if ok {
		closeParams := &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI},
		}
		if err := c.Notify(ctx, protocol.MethodTextDocumentDidClose, closeParams); err != nil {
			return err
		}
		c.docs.remove(doc.URI)
	}

	version := current.version + 1
	openParams := &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        doc.URI,
			LanguageID: protocol.LanguageIdentifier(doc.LanguageID),
			Version:    version,
			Text:       doc.Text,
		},
	}
	if err := c.Notify(ctx, protocol.MethodTextDocumentDidOpen, openParams); err != nil {
		return err
	}
	c.docs.set(doc.URI, openDocument{hash: doc.Hash, version: version})
	c.logger.Debugw("document synced", "uri", doc.URI, "version", version, "reopened", ok)
	return nil
}

// OpenDocuments is the number of documents currently open on this connection.
func (c *Conn) OpenDocuments() int {
	c.docs.mu.Lock()
	defer c.docs.mu.Unlock()
	return len(c.docs.open)
}
