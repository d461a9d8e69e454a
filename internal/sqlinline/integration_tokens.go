package sqlinline

const QCreateIntegrationTokensTable = `--sql 93c61ff4-1378-4f60-8e51-ead954f55bf6
create table if not exists integration_tokens (
    id          uuid primary key default gen_random_uuid(),
    provider    text not null unique,
    token       text not null,
    properties  jsonb not null default '{}'::jsonb,
    created_at  timestamptz not null default now(),
    updated_at  timestamptz not null default now()
);
`

const QSelectIntegrationToken = `--sql 9d4557b9-ee87-4713-bffe-6b6c15a254b0
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 859aa90f-170f-40c0-88fe-d76783128e2f
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
