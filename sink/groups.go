/*
 * MailPump - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/groupsmigration/v1"
	"google.golang.org/api/option"
)

const messageContentType = "message/rfc822"

// GroupsSink inserts messages into a Google Group's archive using the
// Groups Migration API.
type GroupsSink struct {
	svc     *groupsmigration.Service
	groupID string
}

// NewGroupsSink creates a sink for the group with the given address or id.
// Credentials and endpoints are supplied through opts.
func NewGroupsSink(ctx context.Context, groupID string, opts ...option.ClientOption) (*GroupsSink, error) {
	svc, err := groupsmigration.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create groups migration service: %w", err)
	}

	return &GroupsSink{svc: svc, groupID: groupID}, nil
}

func (s *GroupsSink) Upload(ctx context.Context, content []byte) (Status, error) {
	res, err := s.svc.Archive.Insert(s.groupID).
		Media(bytes.NewReader(content), googleapi.ContentType(messageContentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyError(err)
	}

	log.WithFields(log.Fields{
		"group":         s.groupID,
		"response_code": res.ResponseCode,
		"size":          len(content),
	}).Trace("groups_archive_insert")

	return Status(res.ResponseCode), nil
}

// classifyError marks rejections of the message itself as permanent.
// Everything else, including quota and server errors, may be retried.
func classifyError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
	}

	return err
}
