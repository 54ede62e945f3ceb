// Package collect implements the collect stage: it reads a company's
// investor relations page plus a few same-site sub pages and keeps the PDF
// links that look like annual or periodic reports.
package collect
