package policy

import "regexp"

// RulesetVersion identifies the destructive rule table. Bump on any
// change to a pattern or to table order.
const RulesetVersion = "v1"

// Rule is one destructive-pattern entry. A match is absolute: no option
// can downgrade it.
type Rule struct {
	ID          string
	Pattern     *regexp.Regexp
	Description string
	Severity    string
}

// cmdStart anchors a verb at command position: start of line, after a
// shell separator, or behind sudo. envAssigns permits VAR=val prefixes.
// Together they catch "ls; rm -rf /" and "FOO=1 sudo rm -rf /" while
// leaving "echo rm -rf /" alone.
const (
	cmdStart   = `(?:^|[;&|(]\s*|\bsudo\s+|\bdoas\s+)`
	envAssigns = `(?:[A-Za-z_][A-Za-z0-9_]*=\S*\s+)*`
)

// destructiveRules is evaluated in order; the first match decides.
var destructiveRules = []Rule{
	{
		ID:          "PG001",
		Pattern:     regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `rm\s+(?:-+[a-z]*\s+)*-+[a-z]*r[a-z]*\s+(?:-+[a-z-]*\s+)*["']?/+\*?["']?(?:\s|$|[;&|)])`),
		Description: "recursive deletion rooted at /",
		Severity:    "critical",
	},
	{
		ID:          "PG002",
		Pattern:     regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:|\w+\(\)\s*\{[^{}]*\|[^{}]*&[^{}]*\}\s*;\s*\w+`),
		Description: "fork bomb",
		Severity:    "critical",
	},
	{
		ID:          "PG003",
		Pattern:     regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `dd\s+[^;|&]*\bof=/dev/(?:sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d+n\d+|mmcblk\d+|disk\d+)|>\s*/dev/(?:sd[a-z]|hd[a-z]|vd[a-z]|nvme\d+n\d+)\b`),
		Description: "raw write to block device",
		Severity:    "critical",
	},
	{
		ID:          "PG004",
		Pattern:     regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:mkfs(?:\.[a-z0-9]+)?|mke2fs|mkswap)\b`),
		Description: "filesystem formatting",
		Severity:    "critical",
	},
	{
		ID:          "PG005",
		Pattern:     regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:rm|unlink|shred|truncate)\b[^;|&]*\s/(?:etc/(?:passwd|shadow|sudoers)|boot)(?:/\S*)?(?:\s|$)|>\s*/etc/(?:passwd|shadow|sudoers)\b`),
		Description: "tampering with core system files",
		Severity:    "critical",
	},
	{
		ID:          "PG006",
		Pattern:     regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:curl|wget|fetch)\b[^|]*\|\s*(?:sudo\s+)?(?:[a-z]*sh|python[0-9.]*|perl|ruby|node)\b`),
		Description: "remote script piped to interpreter",
		Severity:    "critical",
	},
}

// Approval heuristics. These never block; they only decide which
// non-destructive commands need a human.
var (
	privilegeRe = regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:sudo|doas|su)\b`)

	mutationRe = regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:rm|mv|cp|dd|ln|mkdir|rmdir|touch|chmod|chown|tee|truncate|shred|kill|pkill|killall|systemctl|service|reboot|shutdown|apt|apt-get|yum|dnf|pacman|brew|npm|pip3?|gem|cargo)\b|>{1,2}|\bsed\s+-[a-z]*i|\bgit\s+(?:push|reset|clean)\b`)

	networkRe = regexp.MustCompile(`(?i)` + cmdStart + envAssigns + `(?:curl|wget|nc|ncat|netcat|ssh|scp|sftp|rsync|ftp|telnet|ping|dig|nslookup)\b`)
)
