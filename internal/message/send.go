package message

import "context"

// Send builds one envelope and puts it on the queue.
//
// params may be nil (encoded as null). data is any JSON-encodable value;
// pass json.RawMessage for data that is already JSON text. Send is a
// suspension point: it returns only after the envelope is queued.
func Send(ctx context.Context, q *Queue, event string, params, data any) error {
	msg, err := NewEnvelope(event, params, data).Encode()
	if err != nil {
		return err
	}
	return q.Put(ctx, msg)
}
