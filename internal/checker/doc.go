// Package checker observes a domain's email-authentication posture.
//
// Architecture overview:
//
//   - NormalizeDomain turns user input into a Domain or a ValidationError.
//     It is pure and never touches the network.
//   - EmailAuthChecker queries SPF, DKIM and DMARC TXT records through a
//     resolver.Resolver, each probe under its own timeout, and folds resolver
//     failures into the returned Finding values.
//   - Report.RiskValues maps findings to the technical questionnaire codes
//     consumed by the scoring package.
//   - Runner checks many domains with a bounded worker pool and a start-rate
//     limit, which the CLI uses for batch verification.
package checker
