// Package verifysdk drives a user through identity verification: email,
// phone, document, video, social and wallet proofs.
//
// A verification starts pending and ends approved, rejected or expired. The
// Workflow refuses confirm, upload and cancel for a record it already knows
// to be terminal, without calling the service. A pending record whose
// expires_at has passed is reported as expired on every read.
//
//	wf := verifysdk.NewWorkflow(client, verifysdk.WithAuthToken(token))
//
//	v, err := wf.Start(ctx, verifysdk.TypeEmail, verifysdk.EmailData{Email: "a@b.com"}, nil)
//	res, err := wf.Confirm(ctx, v.ID, "123456")
//	if res.Valid {
//		// approved
//	}
package verifysdk
