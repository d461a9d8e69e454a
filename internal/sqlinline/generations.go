package sqlinline

const QCreateGenerationsTable = `--sql 9ddda061-b627-4d28-b86d-59d505cc0a93
create table if not exists child_generations (
    id             uuid primary key,
    user_id        text not null,
    child_key      text not null,
    prediction_id  text not null default '',
    outcome        text not null,
    status         text not null default '',
    file_url       text not null default '',
    reason         text not null default '',
    fallback       boolean not null default false,
    with_images    boolean not null default false,
    poll_attempts  int not null default 0,
    created_at     timestamptz not null default now()
);
`

const QCreateGenerationsIndex = `--sql 544c9d7b-cd17-44db-baac-8dc5d92a48eb
create index if not exists child_generations_user_created_idx
    on child_generations (user_id, created_at desc);
`

const QInsertGeneration = `--sql d85b27dc-7097-45d8-9653-294bf3cbeb14
insert into child_generations (
    id, user_id, child_key, prediction_id, outcome, status,
    file_url, reason, fallback, with_images, poll_attempts, created_at
)
values (
    $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text,
    $7::text, $8::text, $9::boolean, $10::boolean, $11::int, $12::timestamptz
);
`

const QListGenerationsByUser = `--sql 002a8ac6-73b2-42e7-9346-4091cf3310a2
select id::text, user_id, child_key, prediction_id, outcome, status,
       file_url, reason, fallback, with_images, poll_attempts, created_at
from child_generations
where user_id = $1::text
order by created_at desc
limit $2::int;
`
