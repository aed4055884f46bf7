package gitbase

import "strings"

// commitRecord is one commit as read from "git log" output. embedded holds
// the message with its four-column indentation removed, which for commits
// written by Store.Update is the encoded ChangeSet.
type commitRecord struct {
	sha      string
	author   string
	date     string
	message  string
	embedded string
}

type parseState int

const (
	awaitingCommit parseState = iota
	// inBody means a record is open: a commit, Author or Date line was seen.
	inBody
)

const messageIndent = 4

type logParser struct {
	state    parseState
	current  commitRecord
	message  strings.Builder
	embedded strings.Builder
	records  []commitRecord
}

// parseLog splits log text in git's medium format into commit records, in
// input order. It never fails: plain text before the first commit line joins
// the first record's message, an Author or Date line before it opens a record
// without a sha, and input without any commit line yields one record with
// empty header fields. Callers treat blank input as no records.
func parseLog(text string) []commitRecord {
	var p logParser
	text = strings.TrimRight(text, "\r\n")
	for line := range strings.SplitSeq(text, "\n") {
		p.feed(strings.TrimSuffix(line, "\r"))
	}
	p.flush()
	return p.records
}

func (p *logParser) feed(line string) {
	if sha, ok := headerValue(line, "commit "); ok {
		if p.state == inBody {
			p.flush()
		}
		p.current.sha = sha
		p.state = inBody
		return
	}
	if author, ok := headerValue(line, "Author: "); ok {
		p.current.author = author
		p.state = inBody
		return
	}
	if date, ok := headerValue(line, "Date: "); ok {
		p.current.date = strings.TrimSpace(date)
		p.state = inBody
		return
	}
	p.message.WriteString(line)
	p.message.WriteByte('\n')
	if len(line) >= messageIndent {
		p.embedded.WriteString(line[messageIndent:])
		p.embedded.WriteByte('\n')
	}
}

func (p *logParser) flush() {
	rec := p.current
	rec.message = p.message.String()
	rec.embedded = p.embedded.String()
	p.records = append(p.records, rec)
	p.current = commitRecord{}
	p.message.Reset()
	p.embedded.Reset()
	p.state = awaitingCommit
}

func headerValue(line, prefix string) (string, bool) {
	value, ok := strings.CutPrefix(line, prefix)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
