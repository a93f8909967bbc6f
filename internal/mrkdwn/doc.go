// Package mrkdwn converts standard markdown, as produced by responder
// backends, into Slack's mrkdwn dialect before delivery.
package mrkdwn
