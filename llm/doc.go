// Copyright 2025 CareFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package llm provides the language-model collaborators used by the care
pipeline: a unified Provider interface, an AWS Bedrock implementation, a
deterministic mock for development and tests, the MedGen medical-language
generation wrapper, and the AgentClient used to execute named care agents
against a provider.

Providers must be safe for concurrent use. Collaborator failures are
returned as errors, never folded into response text, so callers can
distinguish a genuine model response from a transport failure.
*/
package llm
